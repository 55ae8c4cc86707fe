package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestYearsSince(t *testing.T) {
	start := time.Date(2021, 11, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"day before anniversary", time.Date(2024, 11, 5, 23, 59, 0, 0, time.UTC), 2},
		{"on anniversary", time.Date(2024, 11, 6, 0, 0, 0, 0, time.UTC), 3},
		{"after anniversary", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 3},
		{"early in year", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), 3},
		{"same day as start", start, 0},
		{"before start", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, YearsSince(start, tt.now))
		})
	}
}

func TestYearsOfExperience(t *testing.T) {
	p := DefaultProfile()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 4, p.YearsOfExperience(now))

	p.ExperienceStart = "garbage"
	assert.Equal(t, 0, p.YearsOfExperience(now))
	assert.Error(t, p.Validate())
}

func TestTechIcon(t *testing.T) {
	tests := map[string]string{
		"React":      "globe",
		"Tailwind":   "layout",
		"Express":    "cpu",
		"Python":     "code",
		"Javascript": "code",
		"HTML":       "code",
		"CSS":        "code",
		"Laravel":    "package",
		"react":      "package",
		"":           "package",
	}
	for tech, want := range tests {
		assert.Equal(t, want, TechIcon(tech), tech)
	}
}

func TestProjectWithDefaults(t *testing.T) {
	p := Project{Title: "Bare"}.WithDefaults("https://github.com/wilberttgr")
	assert.Equal(t, []string{}, p.Features)
	assert.Equal(t, []string{}, p.TechStack)
	assert.Equal(t, "https://github.com/wilberttgr", p.Github)
	assert.False(t, p.IsPrivate())

	q := Project{Github: PrivateGithub, Features: []string{"x"}}.WithDefaults("https://github.com/wilberttgr")
	assert.Equal(t, PrivateGithub, q.Github)
	assert.Equal(t, []string{"x"}, q.Features)
	assert.True(t, q.IsPrivate())
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	assert.Equal(t, []string{"Network & Telecom Student", "Tech Enthusiast"}, p.Words)
	assert.Equal(t, []string{"Laravel", "React", "Flutter"}, p.TechStack)
	assert.NoError(t, p.Validate())
}
