package models

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// JobPosting is immutable once loaded into a catalog.
type JobPosting struct {
	ID                 string   `json:"id" yaml:"id" validate:"required"`
	Title              string   `json:"title" yaml:"title" validate:"required"`
	RequiredSkills     []Skill  `json:"required_skills" yaml:"required_skills" validate:"dive"`
	PreferredSkills    []Skill  `json:"preferred_skills,omitempty" yaml:"preferred_skills,omitempty" validate:"dive"`
	MinExperienceYears *float64 `json:"min_experience_years,omitempty" yaml:"min_experience_years,omitempty" validate:"omitempty,gte=0"`
	Description        string   `json:"description" yaml:"description"`
}

// Validate checks the structural constraints of the posting.
func (j *JobPosting) Validate() error {
	if err := validate.Struct(j); err != nil {
		return errors.Wrapf(err, "invalid job posting %q", j.ID)
	}
	return nil
}

// EmbeddingText is the text a job is embedded from when the index is built.
func (j *JobPosting) EmbeddingText() string {
	names := make([]string, 0, len(j.RequiredSkills))
	for _, s := range j.RequiredSkills {
		names = append(names, s.Name)
	}
	return fmt.Sprintf("%s\n%s\nRequired: %s", j.Title, j.Description, strings.Join(names, ", "))
}

// SkillLabels joins skill labels with ", ".
func SkillLabels(skills []Skill) string {
	labels := make([]string, 0, len(skills))
	for _, s := range skills {
		labels = append(labels, s.Label())
	}
	return strings.Join(labels, ", ")
}
