package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/models"
)

// Classify enriches every skill with level, years and domain.
type Classify struct {
	toolkit
}

func NewClassify(deps Deps, cfg Config) *Classify {
	return &Classify{toolkit: newToolkit(deps, cfg)}
}

func (s *Classify) Name() string { return "classify" }

func (s *Classify) Ready(state *models.State) bool {
	return state.CandidateProfile != nil
}

func (s *Classify) Run(ctx context.Context, state *models.State) error {
	log := s.log(state, s.Name())
	profile := state.CandidateProfile

	prompt := renderPrompt(promptClassify, map[string]string{
		"SKILLS":          skillLines(profile.Skills),
		"PROFILE_SUMMARY": profileSummary(profile),
	})

	raw, err := s.generate(ctx, log, "classify skills", prompt)
	if err != nil {
		return err
	}

	data, err := s.parseStrict(raw, "classify skills")
	if err != nil {
		return err
	}

	value, ok := data["skills"]
	if !ok {
		return contractf("classification response has no skills")
	}
	skills, err := parseSkills(value)
	if err != nil {
		return errors.Wrap(err, "classification response")
	}
	if len(skills) == 0 {
		return contractf("classification response has an empty skill list")
	}

	log.Debug("skills classified",
		zap.Int("before", len(profile.Skills)),
		zap.Int("after", len(skills)),
	)

	profile.Skills = skills
	state.Advance(models.StepMatch)
	return nil
}

func skillLines(skills []models.Skill) string {
	lines := make([]string, 0, len(skills))
	for _, skill := range skills {
		line := "- " + skill.Name
		if skill.Level != "" {
			line += fmt.Sprintf(" (Level: %s)", skill.Level)
		}
		if skill.Years != nil && *skill.Years > 0 {
			line += fmt.Sprintf(" (%s years)", models.FormatYears(skill.Years))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func profileSummary(p *models.CandidateProfile) string {
	return fmt.Sprintf("Name: %s\nTitle: %s\nTotal Experience: %s years\nSummary: %s",
		p.Name, p.Title, models.FormatYears(p.ExperienceYears), orDefault(p.Summary, "Not provided"))
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
