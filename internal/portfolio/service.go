package portfolio

import (
	"fmt"
	"time"
)

// Service assembles page data from the repository.
type Service struct {
	repo *Repository
}

// NewService creates a portfolio service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Profile returns the current profile.
func (s *Service) Profile() (Profile, error) {
	return s.repo.Profile()
}

// Projects returns all projects with defaults applied.
func (s *Service) Projects() ([]*Project, error) {
	profile, err := s.repo.Profile()
	if err != nil {
		return nil, err
	}
	projects, err := s.repo.ListProjects()
	if err != nil {
		return nil, err
	}
	for i, p := range projects {
		withDefaults := p.WithDefaults(profile.GithubURL)
		projects[i] = &withDefaults
	}
	return projects, nil
}

// Project returns one project, by ID or slug, with defaults applied.
func (s *Service) Project(ref string) (*Project, error) {
	profile, err := s.repo.Profile()
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetProject(ref)
	if err != nil {
		return nil, err
	}
	withDefaults := p.WithDefaults(profile.GithubURL)
	return &withDefaults, nil
}

// Certificates returns all certificates.
func (s *Service) Certificates() ([]*Certificate, error) {
	return s.repo.ListCertificates()
}

// Stats computes the about-section counters as of now.
func (s *Service) Stats(now time.Time) (Stats, error) {
	profile, err := s.repo.Profile()
	if err != nil {
		return Stats{}, err
	}
	projects, err := s.repo.ListProjects()
	if err != nil {
		return Stats{}, fmt.Errorf("counting projects: %w", err)
	}
	certs, err := s.repo.ListCertificates()
	if err != nil {
		return Stats{}, fmt.Errorf("counting certificates: %w", err)
	}

	return Stats{
		Projects:     len(projects),
		Certificates: len(certs),
		Years:        profile.YearsOfExperience(now),
	}, nil
}

// Load validates c and replaces all stored content with it.
func (s *Service) Load(c *Content) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.repo.Replace(c)
}
