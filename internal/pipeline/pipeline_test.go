package pipeline

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/talentmatch/internal/catalog"
	"github.com/spigell/talentmatch/internal/models"
	"github.com/spigell/talentmatch/internal/pdftext"
	"github.com/spigell/talentmatch/internal/pdftext/pdftest"
)

func newPipeline(t *testing.T, deps Deps, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(deps, cfg)
	require.NoError(t, err)
	return p
}

func TestFixtureResumeRunsWithoutExtractionCall(t *testing.T) {
	gen := happyGenerator()
	p := newPipeline(t, testDeps(t, gen), DefaultConfig())

	state, outcome := p.Process(context.Background(), models.TextInput(sampleResume))

	require.Equal(t, OutcomeSucceeded, outcome, state.Error)
	assert.Equal(t, models.StepComplete, state.CurrentStep)
	assert.Empty(t, state.Error)
	assert.NotEmpty(t, state.RunID)

	assert.Equal(t, 0, gen.count(promptValidate))
	assert.Equal(t, 0, gen.count(promptExtract))
	assert.Equal(t, 1, gen.count(promptClassify))

	require.Len(t, state.JobMatches, 2)
	assert.Equal(t, 2, gen.count(promptMatch))
	assert.Equal(t, 2, gen.count(promptReview))

	for _, m := range state.JobMatches {
		assert.True(t, m.Reviewed)
		assert.Equal(t, 0.85, m.ConfidenceScore)
		assert.Equal(t, models.StatusRecruiterReview, m.Status)
		assert.Equal(t, "Solid fit", m.Reasoning)
		assert.Equal(t, []string{"PyTorch"}, m.KeyGaps)
	}

	require.NotNil(t, state.CandidateProfile)
	assert.Equal(t, "Jane Doe", state.CandidateProfile.Name)
	assert.Equal(t, []string{"Python", "AWS"}, state.CandidateProfile.SkillNames())
}

func TestFixtureProfileIsNotShared(t *testing.T) {
	gen := happyGenerator()
	deps := testDeps(t, gen)
	p := newPipeline(t, deps, DefaultConfig())

	first, _ := p.Process(context.Background(), models.TextInput(sampleResume))
	second, _ := p.Process(context.Background(), models.TextInput(sampleResume))

	require.NotNil(t, first.CandidateProfile)
	assert.NotSame(t, first.CandidateProfile, second.CandidateProfile)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, SampleProfile().Skills, 9)
}

func TestStickyErrorShortCircuitsEveryStage(t *testing.T) {
	gen := happyGenerator()
	deps := testDeps(t, gen)
	p := newPipeline(t, deps, DefaultConfig())

	state := models.NewState(models.TextInput(sampleResume))
	state.Advance(models.StepClassify)
	state.Fail(models.Mark(errors.New("earlier failure"), models.ErrUpstream))

	for _, stage := range p.Stages() {
		RunStage(context.Background(), stage, state, deps.Logger)
		assert.Equal(t, "earlier failure", state.Error)
		assert.Equal(t, models.StepClassify, state.CurrentStep)
		assert.Nil(t, state.CandidateProfile)
		assert.Empty(t, state.JobMatches)
	}

	assert.Equal(t, OutcomeFailed, p.Run(context.Background(), state))
	assert.Equal(t, "earlier failure", state.Error)
	assert.Equal(t, 0, gen.total())
}

func TestImageOnlyPDFFailsIngest(t *testing.T) {
	gen := happyGenerator()
	deps := testDeps(t, gen)
	deps.Extractor = pdftext.Reader{}
	p := newPipeline(t, deps, DefaultConfig())

	scan := pdftest.Build(pdftest.ImageOnly)
	require.True(t, utf8.Valid(scan))

	state, outcome := p.Process(context.Background(), models.BytesInput(scan))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.StepStart, state.CurrentStep)
	assert.Contains(t, state.Error, "no text could be extracted")
	assert.True(t, errors.Is(state.Err, models.ErrInput))
	assert.Equal(t, 0, gen.total())
	assert.Nil(t, state.CandidateProfile)
}

func TestTextPDFRunsThroughReader(t *testing.T) {
	gen := happyGenerator()
	deps := testDeps(t, gen)
	deps.Extractor = pdftext.Reader{}

	state := models.NewState(models.BytesInput(pdftest.Build(pdftest.TextPage("Jane Doe Python engineer"))))
	RunStage(context.Background(), NewIngest(deps, DefaultConfig()), state, deps.Logger)

	require.False(t, state.Failed(), state.Error)
	text, _ := state.ResumeText.Text()
	assert.Equal(t, "Jane Doe Python engineer", text)
	assert.Equal(t, models.StepExtract, state.CurrentStep)
}

func TestMissingInputFails(t *testing.T) {
	p := newPipeline(t, testDeps(t, happyGenerator()), DefaultConfig())

	for name, input := range map[string]*models.ResumeInput{
		"nil":         nil,
		"blank text":  models.TextInput("  \n "),
		"empty bytes": models.BytesInput(nil),
	} {
		t.Run(name, func(t *testing.T) {
			state, outcome := p.Process(context.Background(), input)
			assert.Equal(t, OutcomeFailed, outcome)
			assert.Equal(t, "no resume data provided", state.Error)
			assert.True(t, models.IsClientError(state.Err))
		})
	}
}

func TestRunTotality(t *testing.T) {
	boom := errors.New("provider unavailable")

	tests := []struct {
		name    string
		gen     *scriptedGenerator
		input   *models.ResumeInput
		succeed bool
		kind    error
	}{
		{name: "fixture", gen: happyGenerator(), input: models.TextInput(sampleResume), succeed: true},
		{
			name:  "invalid resume",
			gen:   happyGenerator().answer(promptValidate, "INVALID"),
			input: models.TextInput("lorem ipsum dolor sit amet"),
			kind:  models.ErrValidation,
		},
		{
			name:  "validation call fails",
			gen:   happyGenerator().fail(promptValidate, boom),
			input: models.TextInput("Experienced backend developer"),
			kind:  models.ErrUpstream,
		},
		{
			name:    "extraction fails softly",
			gen:     happyGenerator().fail(promptExtract, boom),
			input:   models.TextInput("John Smith, backend developer, Go and SQL"),
			succeed: true,
		},
		{
			name:  "classification garbage",
			gen:   happyGenerator().answer(promptClassify, "I cannot help with that"),
			input: models.TextInput(sampleResume),
			kind:  models.ErrUpstream,
		},
		{
			name:    "scoring fails softly",
			gen:     happyGenerator().fail(promptMatch, boom),
			input:   models.TextInput(sampleResume),
			succeed: true,
		},
		{
			name:  "review fails",
			gen:   happyGenerator().fail(promptReview, boom),
			input: models.TextInput(sampleResume),
			kind:  models.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, testDeps(t, tt.gen), DefaultConfig())
			state, outcome := p.Process(context.Background(), tt.input)

			if tt.succeed {
				require.Equal(t, OutcomeSucceeded, outcome, state.Error)
				assert.Empty(t, state.Error)
				assert.Equal(t, models.StepComplete, state.CurrentStep)
				assert.NotEmpty(t, state.JobMatches)
				return
			}

			assert.Equal(t, OutcomeFailed, outcome)
			assert.NotEmpty(t, state.Error)
			assert.NotEqual(t, models.StepComplete, state.CurrentStep)
			assert.True(t, errors.Is(state.Err, tt.kind), "error %v", state.Err)
		})
	}
}

func TestMidChainEntryStartsAtClassify(t *testing.T) {
	gen := happyGenerator()
	p := newPipeline(t, testDeps(t, gen), DefaultConfig())

	state := models.NewState(nil)
	state.CandidateProfile = &models.CandidateProfile{
		Name:    "Sam Lee",
		Title:   "Backend Engineer",
		Skills:  []models.Skill{{Name: "Python"}},
		Summary: "Backend services",
	}

	outcome := p.Run(context.Background(), state)

	require.Equal(t, OutcomeSucceeded, outcome, state.Error)
	assert.Equal(t, 0, gen.count(promptValidate))
	assert.Equal(t, 0, gen.count(promptExtract))
	assert.Equal(t, 1, gen.count(promptClassify))
	assert.Equal(t, "job1", state.JobMatches[0].MatchedJob.ID)
}

func TestRunWithoutMatchesFails(t *testing.T) {
	gen := happyGenerator()
	deps := testDeps(t, gen)
	deps.Index = buildIndex(t, &catalog.Catalog{})
	p := newPipeline(t, deps, DefaultConfig())

	state, outcome := p.Process(context.Background(), models.TextInput(sampleResume))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, errors.Is(state.Err, ErrNoMatches))
	assert.True(t, errors.Is(state.Err, models.ErrContract))
	assert.Equal(t, models.StepQA, state.CurrentStep)
	assert.False(t, state.Complete())
	assert.Empty(t, state.JobMatches)
	assert.Equal(t, 0, gen.count(promptReview))
}

func TestModelCallsAreBounded(t *testing.T) {
	gen := happyGenerator().on(promptClassify, func(string) (string, error) {
		return "", context.DeadlineExceeded
	})
	blocking := &blockingGenerator{scriptedGenerator: gen}

	deps := testDeps(t, gen)
	deps.Generator = blocking
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	p := newPipeline(t, deps, cfg)

	state, outcome := p.Process(context.Background(), models.TextInput(sampleResume))

	assert.Equal(t, OutcomeFailed, outcome)
	assert.True(t, errors.Is(state.Err, models.ErrUpstream))
	assert.Contains(t, state.Error, "timed out")
	assert.Equal(t, models.StepClassify, state.CurrentStep)
}

// blockingGenerator waits for the call deadline on classification prompts.
type blockingGenerator struct {
	*scriptedGenerator
}

func (b *blockingGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if promptKind(prompt) == promptClassify {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return b.scriptedGenerator.GenerateContent(ctx, prompt)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, DefaultConfig())
	assert.Error(t, err)

	deps := testDeps(t, happyGenerator())
	deps.Index = nil
	_, err = New(deps, DefaultConfig())
	assert.Error(t, err)
}
