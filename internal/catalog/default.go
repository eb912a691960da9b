package catalog

import "github.com/spigell/talentmatch/internal/models"

// Default returns the built-in catalog used when no file is configured.
func Default() *Catalog {
	return &Catalog{Jobs: []models.JobPosting{
		{
			ID:    "job1",
			Title: "Senior Backend Engineer",
			RequiredSkills: []models.Skill{
				{Name: "Python", Level: models.LevelExpert},
				{Name: "PostgreSQL", Level: models.LevelIntermediate},
			},
			PreferredSkills: []models.Skill{
				{Name: "AWS", Level: models.LevelIntermediate},
			},
			MinExperienceYears: models.Float(5),
			Description:        "Build scalable backend services and own their data layer.",
		},
		{
			ID:    "job2",
			Title: "ML Engineer",
			RequiredSkills: []models.Skill{
				{Name: "Python", Level: models.LevelExpert},
				{Name: "PyTorch", Level: models.LevelIntermediate},
			},
			PreferredSkills: []models.Skill{
				{Name: "AWS", Level: models.LevelIntermediate},
			},
			MinExperienceYears: models.Float(3),
			Description:        "Develop ML models and take them to production.",
		},
	}}
}
