package pipeline

import (
	"context"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/ai"
	"github.com/spigell/talentmatch/internal/catalog"
	"github.com/spigell/talentmatch/internal/llmjson"
	"github.com/spigell/talentmatch/internal/logger"
	"github.com/spigell/talentmatch/internal/models"
)

const (
	neutralScore     = 0.5
	neutralReasoning = "Automated scoring unavailable; neutral score assigned"
)

// Match shortlists the nearest jobs and scores each pairing.
type Match struct {
	toolkit
	embedder ai.Embedder
	index    *catalog.Index
	topK     int
}

func NewMatch(deps Deps, cfg Config) *Match {
	deps = deps.withDefaults()
	cfg = cfg.withDefaults()
	return &Match{
		toolkit:  newToolkit(deps, cfg),
		embedder: deps.Embedder,
		index:    deps.Index,
		topK:     cfg.TopK,
	}
}

func (s *Match) Name() string { return "match" }

func (s *Match) Ready(state *models.State) bool {
	return state.CandidateProfile != nil
}

func (s *Match) Run(ctx context.Context, state *models.State) error {
	log := s.log(state, s.Name())
	profile := state.CandidateProfile

	if s.embedder == nil || s.index == nil {
		return models.Mark(errors.New("job index is not available"), models.ErrUpstream)
	}

	vector, err := s.embed(ctx, s.embedder, profile.EmbeddingText())
	if err != nil {
		return err
	}

	nearest, err := s.index.Nearest(vector, s.topK)
	if err != nil {
		return models.Mark(errors.Wrap(err, "search job index"), models.ErrUpstream)
	}

	matches := make([]*models.MatchResult, 0, len(nearest))
	for _, candidate := range nearest {
		jobLog := logger.WithFields(log, zap.String(logger.FieldJobID, candidate.Job.ID))

		score, reasoning := s.score(ctx, profile, candidate.Job, jobLog)
		match, err := models.NewMatchResult(profile, candidate.Job, score, reasoning, models.StatusForScore(score))
		if err != nil {
			return models.Mark(errors.Wrapf(err, "job %q", candidate.Job.ID), models.ErrContract)
		}

		jobLog.Debug("job scored",
			zap.Float32("distance", candidate.Distance),
			zap.Float64("score", score),
			zap.String("status", string(match.Status)),
		)
		matches = append(matches, match)
	}

	state.JobMatches = matches
	state.Advance(models.StepQA)
	return nil
}

// score never fails; a bad response degrades to the neutral score.
func (s *Match) score(ctx context.Context, profile *models.CandidateProfile, job *models.JobPosting, log *zap.Logger) (float64, string) {
	prompt := renderPrompt(promptMatch, map[string]string{
		"CANDIDATE_TITLE":  profile.Title,
		"CANDIDATE_YEARS":  models.FormatYears(profile.ExperienceYears),
		"CANDIDATE_SKILLS": models.SkillLabels(profile.Skills),
		"JOB_TITLE":        job.Title,
		"JOB_REQUIRED":     models.SkillLabels(job.RequiredSkills),
		"JOB_PREFERRED":    models.SkillLabels(job.PreferredSkills),
		"JOB_YEARS":        models.FormatYears(job.MinExperienceYears),
	})

	fallback := map[string]any{
		"confidence_score": neutralScore,
		"reasoning":        neutralReasoning,
	}

	raw, err := s.generate(ctx, log, "score match", prompt)
	if err != nil {
		log.Warn("scoring call failed, assigning neutral score", zap.Error(err))
		raw = ""
	}

	data, _ := s.parser.Parse(raw, fallback)

	score := llmjson.Float(data["confidence_score"])
	if math.IsNaN(score) {
		score = neutralScore
	}
	score = llmjson.Clamp(score, 0, 1)

	reasoning := llmjson.String(data["reasoning"])
	if strings.TrimSpace(reasoning) == "" {
		reasoning = neutralReasoning
	}

	return score, reasoning
}
