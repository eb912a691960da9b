package pipeline

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/models"
)

// Extract turns resume text into a candidate profile. Model failures degrade
// to the fallback profile instead of failing the run.
type Extract struct {
	toolkit
	fixture  *models.CandidateProfile
	fallback *models.CandidateProfile
	marker   string
}

func NewExtract(deps Deps, cfg Config) *Extract {
	deps = deps.withDefaults()
	return &Extract{
		toolkit:  newToolkit(deps, cfg),
		fixture:  deps.Fixture,
		fallback: deps.Fallback,
		marker:   cfg.FixtureMarker,
	}
}

func (s *Extract) Name() string { return "extract" }

func (s *Extract) Ready(state *models.State) bool {
	return !state.ResumeText.Empty() || state.CandidateProfile == nil
}

func (s *Extract) Run(ctx context.Context, state *models.State) error {
	log := s.log(state, s.Name())

	text, ok := state.ResumeText.Text()
	if !ok {
		return models.Mark(errors.New("resume has not been converted to text"), models.ErrInput)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Mark(errors.New("no resume text to extract from"), models.ErrInput)
	}

	if s.marker != "" && strings.Contains(text, s.marker) {
		log.Info("fixture resume detected, using fixture profile")
		state.CandidateProfile = s.fixture.Clone()
		state.Advance(models.StepClassify)
		return nil
	}

	profile, err := s.extract(ctx, text, log)
	if err != nil {
		log.Warn("profile extraction failed, using fallback profile", zap.Error(err))
		profile = s.fallback.Clone()
	}

	state.CandidateProfile = profile
	state.Advance(models.StepClassify)
	return nil
}

func (s *Extract) extract(ctx context.Context, text string, log *zap.Logger) (*models.CandidateProfile, error) {
	prompt := renderPrompt(promptExtract, map[string]string{"RESUME_TEXT": text})

	raw, err := s.generate(ctx, log, "extract profile", prompt)
	if err != nil {
		return nil, err
	}

	data, err := s.parseStrict(raw, "extract profile")
	if err != nil {
		return nil, err
	}

	return profileFromMap(data)
}
