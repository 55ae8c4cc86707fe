// Package portfolio provides the site's profile, projects and certificates.
package portfolio

import (
	"fmt"
	"time"
)

// PrivateGithub marks a project whose source is not public.
const PrivateGithub = "Private"

// Private repository notice shown instead of following the link.
const (
	PrivateNoticeTitle = "Source Code Private"
	PrivateNoticeText  = "Maaf, source code untuk proyek ini bersifat privat."
)

// Project is a portfolio entry.
type Project struct {
	ID          int64     `json:"id" yaml:"-"`
	Slug        string    `json:"slug" yaml:"slug"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Img         string    `json:"img" yaml:"img"`
	Link        string    `json:"link" yaml:"link"`
	Github      string    `json:"github" yaml:"github"`
	Features    []string  `json:"features" yaml:"features"`
	TechStack   []string  `json:"tech_stack" yaml:"tech_stack"`
	Position    int       `json:"position" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// WithDefaults fills missing lists with empty ones and a missing github link
// with fallback.
func (p Project) WithDefaults(fallback string) Project {
	if p.Features == nil {
		p.Features = []string{}
	}
	if p.TechStack == nil {
		p.TechStack = []string{}
	}
	if p.Github == "" {
		p.Github = fallback
	}
	return p
}

// IsPrivate reports whether the project's source is private.
func (p Project) IsPrivate() bool {
	return p.Github == PrivateGithub
}

// Certificate is an earned certificate shown in the gallery.
type Certificate struct {
	ID       int64  `json:"id" yaml:"-"`
	Title    string `json:"title" yaml:"title"`
	Img      string `json:"img" yaml:"img"`
	Position int    `json:"position" yaml:"-"`
}

// SocialLink is a link in the home section.
type SocialLink struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Profile is the owner's biography and home page content.
type Profile struct {
	Name            string       `json:"name" yaml:"name"`
	Headline        string       `json:"headline" yaml:"headline"`
	About           string       `json:"about" yaml:"about"`
	Photo           string       `json:"photo" yaml:"photo"`
	Words           []string     `json:"words" yaml:"words"`
	TechStack       []string     `json:"tech_stack" yaml:"tech_stack"`
	Socials         []SocialLink `json:"socials" yaml:"socials"`
	Email           string       `json:"email" yaml:"email"`
	CVURL           string       `json:"cv_url" yaml:"cv_url"`
	GithubURL       string       `json:"github_url" yaml:"github_url"`
	ExperienceStart string       `json:"experience_start" yaml:"experience_start"` // YYYY-MM-DD
}

// DefaultProfile is used until content is loaded.
func DefaultProfile() Profile {
	return Profile{
		Name:            "Wilbert Tanugraha",
		Headline:        "Network & Telecom Student",
		Words:           []string{"Network & Telecom Student", "Tech Enthusiast"},
		TechStack:       []string{"Laravel", "React", "Flutter"},
		GithubURL:       "https://github.com/wilberttgr",
		ExperienceStart: "2021-11-06",
		Socials: []SocialLink{
			{Name: "Github", URL: "https://github.com/W-Tgr"},
			{Name: "Linkedin", URL: "https://www.linkedin.com/in/wilberttgr/"},
			{Name: "Instagram", URL: "https://www.instagram.com/wilbert_tgr"},
		},
	}
}

// Validate checks that the profile's dates parse.
func (p Profile) Validate() error {
	if p.ExperienceStart == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", p.ExperienceStart); err != nil {
		return fmt.Errorf("invalid experience_start %q: %w", p.ExperienceStart, err)
	}
	return nil
}

// YearsOfExperience returns whole years since ExperienceStart as of now.
func (p Profile) YearsOfExperience(now time.Time) int {
	start, err := time.Parse("2006-01-02", p.ExperienceStart)
	if err != nil {
		return 0
	}
	return YearsSince(start, now)
}

// YearsSince counts whole years from start to now, not counting the current
// year until its anniversary has been reached.
func YearsSince(start, now time.Time) int {
	years := now.Year() - start.Year()
	anniversary := time.Date(now.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Stats are the counters on the about section.
type Stats struct {
	Projects     int `json:"total_projects"`
	Certificates int `json:"total_certificates"`
	Years        int `json:"years_experience"`
}

var techIcons = map[string]string{
	"React":      "globe",
	"Tailwind":   "layout",
	"Express":    "cpu",
	"Python":     "code",
	"Javascript": "code",
	"HTML":       "code",
	"CSS":        "code",
}

// TechIcon returns the icon name for a technology badge.
func TechIcon(tech string) string {
	if icon, ok := techIcons[tech]; ok {
		return icon
	}
	return "package"
}
