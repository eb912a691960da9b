package pipeline

import "github.com/spigell/talentmatch/internal/models"

// SampleProfile is the demonstration candidate used for fixture resumes and
// as the extraction fallback. Every call returns a fresh copy.
func SampleProfile() *models.CandidateProfile {
	return &models.CandidateProfile{
		Name:  "Jane Doe",
		Title: "Senior Software Engineer",
		Skills: []models.Skill{
			{Name: "Python", Level: models.LevelExpert},
			{Name: "JavaScript", Level: models.LevelIntermediate},
			{Name: "Go", Level: models.LevelBeginner},
			{Name: "Django", Level: models.LevelExpert},
			{Name: "FastAPI", Level: models.LevelExpert},
			{Name: "TensorFlow", Level: models.LevelIntermediate},
			{Name: "AWS", Level: models.LevelExpert},
			{Name: "Docker", Level: models.LevelExpert},
			{Name: "Kubernetes", Level: models.LevelIntermediate},
		},
		ExperienceYears: models.Float(8),
		Education: []string{
			"M.S. Computer Science, Stanford University, 2015",
			"B.S. Computer Science, UC Berkeley, 2013",
		},
		Summary: "Experienced software engineer with 8 years of expertise in building scalable backend systems " +
			"and machine learning applications. Strong focus on Python development, cloud architecture, " +
			"and AI/ML technologies.",
	}
}
