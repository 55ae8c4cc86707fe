package portfolio

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Content is the YAML document that defines the site's content.
type Content struct {
	Profile      Profile        `yaml:"profile"`
	Projects     []*Project     `yaml:"projects"`
	Certificates []*Certificate `yaml:"certificates"`
}

// LoadContent reads and validates a content file.
func LoadContent(path string) (*Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening content file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseContent(f)
}

// ParseContent decodes and validates a content document. Fields not set in
// the profile keep their DefaultProfile values.
func ParseContent(r io.Reader) (*Content, error) {
	c := &Content{Profile: DefaultProfile()}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing content: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks required fields and slug uniqueness.
func (c *Content) Validate() error {
	if err := c.Profile.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, p := range c.Projects {
		if p == nil {
			return fmt.Errorf("project %d is empty", i)
		}
		if p.Slug == "" {
			return fmt.Errorf("project %d: slug is required", i)
		}
		if p.Title == "" {
			return fmt.Errorf("project %s: title is required", p.Slug)
		}
		if seen[p.Slug] {
			return fmt.Errorf("project %s: duplicate slug", p.Slug)
		}
		seen[p.Slug] = true
	}

	for i, cert := range c.Certificates {
		if cert == nil || cert.Img == "" {
			return fmt.Errorf("certificate %d: img is required", i)
		}
	}
	return nil
}
