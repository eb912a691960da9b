package models

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

type MatchStatus string

const (
	StatusAutoMatched     MatchStatus = "auto_matched"
	StatusRecruiterReview MatchStatus = "recruiter_review"
	StatusRejected        MatchStatus = "rejected"
)

// Score thresholds for status assignment. They are policy, not per-call options.
const (
	AutoMatchThreshold = 0.9
	ReviewThreshold    = 0.6
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StatusForScore maps a confidence score to a status.
func StatusForScore(score float64) MatchStatus {
	switch {
	case score >= AutoMatchThreshold:
		return StatusAutoMatched
	case score >= ReviewThreshold:
		return StatusRecruiterReview
	default:
		return StatusRejected
	}
}

// StatusForRecommendation maps a review recommendation to a status.
func StatusForRecommendation(recommendation string) MatchStatus {
	switch recommendation {
	case "proceed":
		return StatusAutoMatched
	case "review":
		return StatusRecruiterReview
	default:
		return StatusRejected
	}
}

type MatchResult struct {
	CandidateProfile *CandidateProfile `json:"candidate_profile" validate:"required"`
	MatchedJob       *JobPosting       `json:"matched_job" validate:"required"`
	ConfidenceScore  float64           `json:"confidence_score" validate:"gte=0,lte=1"`
	Reasoning        string            `json:"reasoning"`
	Status           MatchStatus       `json:"status" validate:"oneof=auto_matched recruiter_review rejected"`

	// Set by the review stage.
	Recommendation string   `json:"recommendation,omitempty"`
	KeyStrengths   []string `json:"key_strengths,omitempty"`
	KeyGaps        []string `json:"key_gaps,omitempty"`
	Reviewed       bool     `json:"reviewed"`
}

// NewMatchResult builds a match and enforces 0 <= score <= 1.
func NewMatchResult(profile *CandidateProfile, job *JobPosting, score float64, reasoning string, status MatchStatus) (*MatchResult, error) {
	m := &MatchResult{
		CandidateProfile: profile,
		MatchedJob:       job,
		ConfidenceScore:  score,
		Reasoning:        reasoning,
		Status:           status,
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return m, nil
}

// Revise replaces score, reasoning and status. The match is left untouched
// when the new score is out of range.
func (m *MatchResult) Revise(score float64, reasoning string, status MatchStatus) error {
	revised := *m
	revised.ConfidenceScore = score
	revised.Reasoning = reasoning
	revised.Status = status
	if err := revised.check(); err != nil {
		return err
	}
	*m = revised
	return nil
}

func (m *MatchResult) check() error {
	if math.IsNaN(m.ConfidenceScore) {
		return errors.New("confidence score is NaN")
	}
	if err := validate.Struct(m); err != nil {
		return errors.Wrapf(err, "invalid match result (score=%v)", m.ConfidenceScore)
	}
	return nil
}
