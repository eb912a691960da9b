package models

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Skill levels suggested to the model. They are not enforced.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelExpert       = "expert"
)

type Skill struct {
	Name   string   `json:"name" mapstructure:"name" yaml:"name" validate:"required"`
	Level  string   `json:"level,omitempty" mapstructure:"level" yaml:"level,omitempty"`
	Years  *float64 `json:"years,omitempty" mapstructure:"years" yaml:"years,omitempty" validate:"omitempty,gte=0"`
	Domain string   `json:"domain,omitempty" mapstructure:"domain" yaml:"domain,omitempty"`
}

// Label renders the skill as "Name (level)" for prompts.
func (s Skill) Label() string {
	level := s.Level
	if level == "" {
		level = "unspecified"
	}
	return fmt.Sprintf("%s (%s)", s.Name, level)
}

type CandidateProfile struct {
	Name            string   `json:"name" validate:"required"`
	Title           string   `json:"title"`
	Skills          []Skill  `json:"skills" validate:"dive"`
	ExperienceYears *float64 `json:"experience_years,omitempty" validate:"omitempty,gte=0"`
	Education       []string `json:"education,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// Validate checks the structural constraints of the profile.
func (p *CandidateProfile) Validate() error {
	if p == nil {
		return Mark(errors.New("candidate profile is nil"), ErrContract)
	}
	if err := validate.Struct(p); err != nil {
		return Mark(errors.Wrap(err, "invalid candidate profile"), ErrContract)
	}
	return nil
}

// Clone returns a deep copy. Stages mutate skills in place, so shared
// defaults must be cloned before they enter a run.
func (p *CandidateProfile) Clone() *CandidateProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Skills = make([]Skill, len(p.Skills))
	for i, s := range p.Skills {
		out.Skills[i] = s
		if s.Years != nil {
			years := *s.Years
			out.Skills[i].Years = &years
		}
	}
	if p.ExperienceYears != nil {
		years := *p.ExperienceYears
		out.ExperienceYears = &years
	}
	if p.Education != nil {
		out.Education = append([]string(nil), p.Education...)
	}
	return &out
}

// SkillNames returns the names of all skills in order.
func (p *CandidateProfile) SkillNames() []string {
	names := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		names = append(names, s.Name)
	}
	return names
}

// EmbeddingText is the composite text used for retrieval.
func (p *CandidateProfile) EmbeddingText() string {
	return fmt.Sprintf("%s\n%s\nSkills: %s", p.Title, p.Summary, strings.Join(p.SkillNames(), ", "))
}

// FormatYears renders an optional year count the way prompts expect it.
func FormatYears(years *float64) string {
	if years == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%g", *years)
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
