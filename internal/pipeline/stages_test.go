package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/talentmatch/internal/models"
)

func runStage(t *testing.T, stage Stage, state *models.State) {
	t.Helper()
	RunStage(context.Background(), stage, state, zap.NewNop())
}

func TestIngestNormalisesText(t *testing.T) {
	gen := happyGenerator()
	stage := NewIngest(testDeps(t, gen), DefaultConfig())

	state := models.NewState(models.TextInput("  John   Smith\n\n\tBackend developer  "))
	runStage(t, stage, state)

	require.False(t, state.Failed(), state.Error)
	text, ok := state.ResumeText.Text()
	require.True(t, ok)
	assert.Equal(t, "John Smith Backend developer", text)
	assert.Equal(t, models.StepExtract, state.CurrentStep)
	assert.Equal(t, 1, gen.count(promptValidate))
}

func TestIngestBytes(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		extractor stubExtractor
		want      string
		wantErr   bool
	}{
		{name: "utf-8 text file", raw: []byte("Jane Doe\nengineer"), want: "Jane Doe engineer"},
		{name: "pdf with text", raw: []byte("%PDF-1.7 \xff binary"), extractor: stubExtractor{text: "Jane Doe\n\nPython"}, want: "Jane Doe Python"},
		{name: "text pdf falls back to raw text", raw: []byte("%PDF-1.4 Jane Doe resume"), extractor: stubExtractor{err: errors.New("broken xref")}, want: "%PDF-1.4 Jane Doe resume"},
		{name: "binary without text", raw: []byte{0xff, 0xfe, 0x00}, extractor: stubExtractor{err: errors.New("not a pdf")}, wantErr: true},
		{name: "readable pdf without text", raw: []byte("%PDF-1.4 scanned page"), extractor: stubExtractor{text: " \n "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(t, happyGenerator())
			deps.Extractor = tt.extractor
			state := models.NewState(models.BytesInput(tt.raw))

			runStage(t, NewIngest(deps, DefaultConfig()), state)

			if tt.wantErr {
				assert.True(t, errors.Is(state.Err, models.ErrInput))
				return
			}
			require.False(t, state.Failed(), state.Error)
			text, _ := state.ResumeText.Text()
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestIngestValidation(t *testing.T) {
	long := "Jane Doe " + strings.Repeat("experience ", 300)

	t.Run("long fixture text is validated", func(t *testing.T) {
		var sent string
		gen := happyGenerator().on(promptValidate, func(prompt string) (string, error) {
			sent = prompt
			return "VALID", nil
		})
		state := models.NewState(models.TextInput(long))
		runStage(t, NewIngest(testDeps(t, gen), DefaultConfig()), state)

		require.False(t, state.Failed(), state.Error)
		assert.Equal(t, 1, gen.count(promptValidate))
		assert.NotContains(t, sent, strings.TrimSpace(long))
	})

	t.Run("disabled", func(t *testing.T) {
		gen := happyGenerator()
		cfg := DefaultConfig()
		cfg.ValidateResume = false
		state := models.NewState(models.TextInput("anything at all"))
		runStage(t, NewIngest(testDeps(t, gen), cfg), state)

		require.False(t, state.Failed())
		assert.Equal(t, 0, gen.count(promptValidate))
	})

	t.Run("lower case verdict", func(t *testing.T) {
		gen := happyGenerator().answer(promptValidate, "This is invalid.")
		state := models.NewState(models.TextInput("random words"))
		runStage(t, NewIngest(testDeps(t, gen), DefaultConfig()), state)

		assert.True(t, errors.Is(state.Err, models.ErrValidation))
		assert.Equal(t, "invalid resume format detected", state.Error)
	})
}

func TestExtractNormalisesModelOutput(t *testing.T) {
	reply := "Here you go:\n```json\n" + `{
		"name": "John Smith",
		"title": "Data Engineer",
		"skills": ["SQL", {"skill_name": "Spark", "level": "Expert", "years": "4"}, {"technology": "Airflow"}],
		"experience_years": "6",
		"education": [{"degree": "B.Sc.", "institution": "MIT", "year": 2012}, "Data bootcamp", {"degree": "M.Sc.", "school": "", "year": ""}],
		"summary": "Pipelines"
	}` + "\n```"

	gen := newScriptedGenerator().answer(promptExtract, reply)
	state := models.NewState(models.TextInput("John Smith data engineer"))
	runStage(t, NewExtract(testDeps(t, gen), DefaultConfig()), state)

	require.False(t, state.Failed(), state.Error)
	p := state.CandidateProfile
	require.NotNil(t, p)
	assert.Equal(t, "John Smith", p.Name)
	assert.Equal(t, []string{"SQL", "Spark", "Airflow"}, p.SkillNames())
	assert.Equal(t, "expert", p.Skills[1].Level)
	require.NotNil(t, p.Skills[1].Years)
	assert.Equal(t, 4.0, *p.Skills[1].Years)
	require.NotNil(t, p.ExperienceYears)
	assert.Equal(t, 6.0, *p.ExperienceYears)
	assert.Equal(t, []string{"B.Sc., MIT, 2012", "Data bootcamp", "M.Sc."}, p.Education)
	assert.Equal(t, models.StepClassify, state.CurrentStep)
}

func TestExtractFallsBackOnModelFailure(t *testing.T) {
	replies := map[string]*scriptedGenerator{
		"call error":       newScriptedGenerator().fail(promptExtract, errors.New("429")),
		"prose":            newScriptedGenerator().answer(promptExtract, "Sorry, I can't do that."),
		"numeric skills":   newScriptedGenerator().answer(promptExtract, `{"name": "X", "skills": [42]}`),
		"missing name":     newScriptedGenerator().answer(promptExtract, `{"title": "Engineer", "skills": []}`),
		"education number": newScriptedGenerator().answer(promptExtract, `{"name": "X", "education": 7}`),
	}

	for name, gen := range replies {
		t.Run(name, func(t *testing.T) {
			core, observed := observer.New(zapcore.WarnLevel)
			deps := testDeps(t, gen)
			deps.Logger = zap.New(core)

			state := models.NewState(models.TextInput("John Smith, welder"))
			runStage(t, NewExtract(deps, DefaultConfig()), state)

			require.False(t, state.Failed(), state.Error)
			assert.Equal(t, SampleProfile(), state.CandidateProfile)
			assert.NotEmpty(t, observed.FilterMessage("profile extraction failed, using fallback profile").All())
		})
	}
}

func TestExtractRejectsUningestedInput(t *testing.T) {
	state := models.NewState(models.BytesInput([]byte("raw")))
	runStage(t, NewExtract(testDeps(t, newScriptedGenerator()), DefaultConfig()), state)
	assert.True(t, errors.Is(state.Err, models.ErrInput))
}

func TestClassify(t *testing.T) {
	profile := func() *models.CandidateProfile {
		return &models.CandidateProfile{
			Name:   "Sam",
			Skills: []models.Skill{{Name: "Go", Level: "expert", Years: models.Float(3)}, {Name: "SQL"}},
		}
	}

	t.Run("replaces skills wholesale", func(t *testing.T) {
		var sent string
		gen := newScriptedGenerator().on(promptClassify, func(prompt string) (string, error) {
			sent = prompt
			return `{"skills": [{"name": "Go", "level": "expert", "years": 3, "domain": "Backend"}]}`, nil
		})
		state := models.NewState(nil)
		state.CandidateProfile = profile()

		runStage(t, NewClassify(testDeps(t, gen), DefaultConfig()), state)

		require.False(t, state.Failed(), state.Error)
		assert.Contains(t, sent, "- Go (Level: expert) (3 years)\n- SQL")
		assert.Contains(t, sent, "Total Experience: Unknown years")
		require.Len(t, state.CandidateProfile.Skills, 1)
		assert.Equal(t, "Backend", state.CandidateProfile.Skills[0].Domain)
		assert.Equal(t, models.StepMatch, state.CurrentStep)
	})

	for name, reply := range map[string]string{
		"missing skills": `{"result": []}`,
		"empty skills":   `{"skills": []}`,
		"skills object":  `{"skills": {"name": "Go"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			gen := newScriptedGenerator().answer(promptClassify, reply)
			state := models.NewState(nil)
			state.CandidateProfile = profile()

			runStage(t, NewClassify(testDeps(t, gen), DefaultConfig()), state)

			assert.True(t, errors.Is(state.Err, models.ErrContract), "error %v", state.Err)
			assert.Len(t, state.CandidateProfile.Skills, 2)
		})
	}
}

func matchState() *models.State {
	state := models.NewState(nil)
	state.CandidateProfile = &models.CandidateProfile{
		Name:    "Sam",
		Title:   "ML Engineer",
		Summary: "Machine learning",
		Skills:  []models.Skill{{Name: "PyTorch", Level: "expert"}},
	}
	return state
}

func TestMatchScoring(t *testing.T) {
	tests := []struct {
		name      string
		gen       *scriptedGenerator
		score     float64
		status    models.MatchStatus
		reasoning string
	}{
		{name: "model score", gen: newScriptedGenerator().answer(promptMatch, `{"confidence_score": 0.7, "reasoning": "ok"}`), score: 0.7, status: models.StatusRecruiterReview, reasoning: "ok"},
		{name: "string score", gen: newScriptedGenerator().answer(promptMatch, `{"confidence_score": "0.92", "reasoning": "great"}`), score: 0.92, status: models.StatusAutoMatched, reasoning: "great"},
		{name: "clamped", gen: newScriptedGenerator().answer(promptMatch, `{"confidence_score": 1.7, "reasoning": "very"}`), score: 1, status: models.StatusAutoMatched, reasoning: "very"},
		{name: "not a number", gen: newScriptedGenerator().answer(promptMatch, `{"confidence_score": "high"}`), score: neutralScore, status: models.StatusRejected, reasoning: neutralReasoning},
		{name: "call fails", gen: newScriptedGenerator().fail(promptMatch, errors.New("timeout")), score: neutralScore, status: models.StatusRejected, reasoning: neutralReasoning},
		{name: "garbage", gen: newScriptedGenerator().answer(promptMatch, "no idea"), score: neutralScore, status: models.StatusRejected, reasoning: neutralReasoning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.TopK = 5
			state := matchState()

			runStage(t, NewMatch(testDeps(t, tt.gen), cfg), state)

			require.False(t, state.Failed(), state.Error)
			require.Len(t, state.JobMatches, 2)
			assert.Equal(t, "job2", state.JobMatches[0].MatchedJob.ID)
			for _, m := range state.JobMatches {
				assert.Equal(t, tt.score, m.ConfidenceScore)
				assert.Equal(t, tt.status, m.Status)
				assert.Equal(t, tt.reasoning, m.Reasoning)
				assert.False(t, m.Reviewed)
			}
			assert.Equal(t, models.StepQA, state.CurrentStep)
		})
	}
}

func TestMatchTopK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 1
	gen := newScriptedGenerator().answer(promptMatch, matchReply)
	state := matchState()

	runStage(t, NewMatch(testDeps(t, gen), cfg), state)

	require.Len(t, state.JobMatches, 1)
	assert.Equal(t, 1, gen.count(promptMatch))
}

func TestMatchEmbeddingFailureIsFatal(t *testing.T) {
	deps := testDeps(t, newScriptedGenerator())
	deps.Embedder = &keywordEmbedder{err: errors.New("quota")}
	state := matchState()

	runStage(t, NewMatch(deps, DefaultConfig()), state)

	assert.True(t, errors.Is(state.Err, models.ErrUpstream))
	assert.Empty(t, state.JobMatches)
}

func reviewedState(t *testing.T) *models.State {
	t.Helper()
	state := matchState()
	runStage(t, NewMatch(testDeps(t, newScriptedGenerator().answer(promptMatch, matchReply)), DefaultConfig()), state)
	require.Len(t, state.JobMatches, 2)
	return state
}

func TestQARecommendationMapping(t *testing.T) {
	for recommendation, status := range map[string]models.MatchStatus{
		"proceed":  models.StatusAutoMatched,
		" Review ": models.StatusRecruiterReview,
		"reject":   models.StatusRejected,
		"unsure":   models.StatusRejected,
	} {
		t.Run(recommendation, func(t *testing.T) {
			reply := `{"validated_score": "0.4", "detailed_analysis": "checked", "recommendation": "` + recommendation + `", "key_strengths": "Python"}`
			state := reviewedState(t)

			runStage(t, NewQA(testDeps(t, newScriptedGenerator().answer(promptReview, reply)), DefaultConfig()), state)

			require.False(t, state.Failed(), state.Error)
			for _, m := range state.JobMatches {
				assert.Equal(t, status, m.Status)
				assert.Equal(t, 0.4, m.ConfidenceScore)
				assert.Equal(t, []string{"Python"}, m.KeyStrengths)
				assert.True(t, m.Reviewed)
			}
			assert.Equal(t, models.StepComplete, state.CurrentStep)
		})
	}
}

func TestQAFailuresAreFatal(t *testing.T) {
	for name, reply := range map[string]string{
		"missing score":          `{"recommendation": "proceed"}`,
		"missing recommendation": `{"validated_score": 0.5}`,
		"score out of range":     `{"validated_score": 3, "recommendation": "proceed"}`,
		"score not numeric":      `{"validated_score": "high", "recommendation": "proceed"}`,
	} {
		t.Run(name, func(t *testing.T) {
			state := reviewedState(t)

			runStage(t, NewQA(testDeps(t, newScriptedGenerator().answer(promptReview, reply)), DefaultConfig()), state)

			assert.True(t, errors.Is(state.Err, models.ErrContract), "error %v", state.Err)
			for _, m := range state.JobMatches {
				assert.Equal(t, 0.95, m.ConfidenceScore)
				assert.False(t, m.Reviewed)
			}
			assert.Equal(t, models.StepQA, state.CurrentStep)
		})
	}
}

func TestQADisabledPassesThrough(t *testing.T) {
	gen := newScriptedGenerator()
	cfg := DefaultConfig()
	cfg.QAEnabled = false
	state := reviewedState(t)

	runStage(t, NewQA(testDeps(t, gen), cfg), state)

	require.False(t, state.Failed())
	assert.Equal(t, 0, gen.total())
	assert.Equal(t, models.StepComplete, state.CurrentStep)
	assert.Equal(t, 0.95, state.JobMatches[0].ConfidenceScore)
}
