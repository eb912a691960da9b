package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/llmjson"
	"github.com/spigell/talentmatch/internal/logger"
	"github.com/spigell/talentmatch/internal/models"
)

// QA re-judges every match independently of the scoring call.
type QA struct {
	toolkit
	enabled bool
}

func NewQA(deps Deps, cfg Config) *QA {
	return &QA{toolkit: newToolkit(deps, cfg), enabled: cfg.QAEnabled}
}

func (s *QA) Name() string { return "qa" }

func (s *QA) Ready(state *models.State) bool {
	return len(state.JobMatches) > 0
}

type reviewPayload struct {
	DetailedAnalysis string   `json:"detailed_analysis"`
	Recommendation   string   `json:"recommendation"`
	KeyStrengths     []string `json:"key_strengths"`
	KeyGaps          []string `json:"key_gaps"`
}

// Run revises every match or none of them.
func (s *QA) Run(ctx context.Context, state *models.State) error {
	log := s.log(state, s.Name())

	if !s.enabled {
		log.Info("review disabled, keeping match scores")
		state.Advance(models.StepComplete)
		return nil
	}

	revised := make([]*models.MatchResult, 0, len(state.JobMatches))
	for _, match := range state.JobMatches {
		jobLog := logger.WithFields(log, zap.String(logger.FieldJobID, match.MatchedJob.ID))

		updated, err := s.review(ctx, match, jobLog)
		if err != nil {
			return errors.Wrapf(err, "review of job %q", match.MatchedJob.ID)
		}
		revised = append(revised, updated)
	}

	state.JobMatches = revised
	state.Advance(models.StepComplete)
	return nil
}

func (s *QA) review(ctx context.Context, match *models.MatchResult, log *zap.Logger) (*models.MatchResult, error) {
	prompt := renderPrompt(promptReview, map[string]string{
		"CANDIDATE_PROFILE": reviewProfile(match.CandidateProfile),
		"JOB_MATCH":         reviewJob(match.MatchedJob),
		"CONFIDENCE_SCORE":  fmt.Sprintf("%.2f", match.ConfidenceScore),
		"REASONING":         match.Reasoning,
	})

	raw, err := s.generate(ctx, log, "review match", prompt)
	if err != nil {
		return nil, err
	}

	data, err := s.parseStrict(raw, "review match")
	if err != nil {
		return nil, err
	}

	for _, key := range []string{"validated_score", "recommendation"} {
		if _, ok := data[key]; !ok {
			return nil, contractf("review response has no %s", key)
		}
	}

	score := llmjson.Float(data["validated_score"])
	if math.IsNaN(score) {
		return nil, contractf("review score %v is not a number", data["validated_score"])
	}

	var r reviewPayload
	if err := llmjson.Decode(data, &r); err != nil {
		return nil, models.Mark(err, models.ErrContract)
	}

	recommendation := strings.ToLower(strings.TrimSpace(r.Recommendation))
	reasoning := orDefault(r.DetailedAnalysis, match.Reasoning)

	updated := *match
	if err := updated.Revise(score, reasoning, models.StatusForRecommendation(recommendation)); err != nil {
		return nil, models.Mark(err, models.ErrContract)
	}
	updated.Recommendation = recommendation
	updated.KeyStrengths = r.KeyStrengths
	updated.KeyGaps = r.KeyGaps
	updated.Reviewed = true

	log.Debug("match reviewed",
		zap.Float64("initial_score", match.ConfidenceScore),
		zap.Float64("validated_score", updated.ConfidenceScore),
		zap.String("recommendation", recommendation),
		zap.String("status", string(updated.Status)),
	)

	return &updated, nil
}

func reviewProfile(p *models.CandidateProfile) string {
	education := "Not provided"
	if len(p.Education) > 0 {
		education = strings.Join(p.Education, ", ")
	}
	return fmt.Sprintf("Name: %s\nTitle: %s\nExperience: %s years\nSkills: %s\nSummary: %s\nEducation: %s",
		p.Name, p.Title, models.FormatYears(p.ExperienceYears), models.SkillLabels(p.Skills),
		orDefault(p.Summary, "Not provided"), education)
}

func reviewJob(j *models.JobPosting) string {
	return fmt.Sprintf("Title: %s\nRequired Skills: %s\nPreferred Skills: %s\nMin Experience: %s years\nDescription: %s",
		j.Title, models.SkillLabels(j.RequiredSkills), models.SkillLabels(j.PreferredSkills),
		models.FormatYears(j.MinExperienceYears), j.Description)
}
