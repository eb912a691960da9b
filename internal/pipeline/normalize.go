package pipeline

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spigell/talentmatch/internal/llmjson"
	"github.com/spigell/talentmatch/internal/models"
)

// Keys models use for the skill name, in order of preference.
var skillNameKeys = []string{"name", "skill", "skill_name", "title", "technology"}

// parseSkills accepts a list whose entries are bare names or objects.
func parseSkills(v any) ([]models.Skill, error) {
	if v == nil {
		return nil, nil
	}

	entries, ok := v.([]any)
	if !ok {
		return nil, contractf("skills must be a list, got %T", v)
	}

	skills := make([]models.Skill, 0, len(entries))
	for i, entry := range entries {
		switch e := entry.(type) {
		case string:
			name := strings.TrimSpace(e)
			if name == "" {
				continue
			}
			skills = append(skills, models.Skill{Name: name})
		case map[string]any:
			skill, err := skillFromMap(e)
			if err != nil {
				return nil, errors.Wrapf(err, "skill %d", i)
			}
			skills = append(skills, skill)
		default:
			return nil, contractf("skill %d has unsupported type %T", i, entry)
		}
	}
	return skills, nil
}

func skillFromMap(m map[string]any) (models.Skill, error) {
	var skill models.Skill
	for _, key := range skillNameKeys {
		if name := llmjson.String(m[key]); name != "" {
			skill.Name = name
			break
		}
	}
	if skill.Name == "" {
		return skill, contractf("skill entry has no name")
	}

	skill.Level = strings.ToLower(llmjson.String(m["level"]))
	skill.Domain = llmjson.String(m["domain"])
	skill.Years = nonNegative(m["years"])
	return skill, nil
}

// parseEducation accepts strings or {degree, school|institution, year}
// objects and renders each entry as one line.
func parseEducation(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}, nil
		}
		return nil, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, entry := range val {
			switch e := entry.(type) {
			case string:
				if s := strings.TrimSpace(e); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if line := educationLine(e); line != "" {
					out = append(out, line)
				}
			default:
				return nil, contractf("education entry %d has unsupported type %T", i, entry)
			}
		}
		return out, nil
	default:
		return nil, contractf("education must be a list, got %T", v)
	}
}

func educationLine(m map[string]any) string {
	school := llmjson.String(m["school"])
	if school == "" {
		school = llmjson.String(m["institution"])
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{llmjson.String(m["degree"]), school, llmjson.String(m["year"])} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// profileFromMap builds a candidate profile from an extraction response.
func profileFromMap(data map[string]any) (*models.CandidateProfile, error) {
	skills, err := parseSkills(data["skills"])
	if err != nil {
		return nil, err
	}
	education, err := parseEducation(data["education"])
	if err != nil {
		return nil, err
	}

	profile := &models.CandidateProfile{
		Name:            llmjson.String(data["name"]),
		Title:           llmjson.String(data["title"]),
		Skills:          skills,
		ExperienceYears: nonNegative(data["experience_years"]),
		Education:       education,
		Summary:         llmjson.String(data["summary"]),
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

func nonNegative(v any) *float64 {
	f := llmjson.Float(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	return models.Float(f)
}

func contractf(format string, args ...any) error {
	return models.Mark(errors.Newf(format, args...), models.ErrContract)
}
