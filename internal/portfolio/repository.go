package portfolio

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("not found")

// Repository provides read access to portfolio content and replaces it
// wholesale from a Content document.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a portfolio repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const projectColumns = `id, slug, title, description, img, link, github, features, tech_stack, position, created_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*Project, error) {
	var p Project
	var features, techStack string
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Img, &p.Link, &p.Github,
		&features, &techStack, &p.Position, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return nil, fmt.Errorf("decoding features of %s: %w", p.Slug, err)
	}
	if err := json.Unmarshal([]byte(techStack), &p.TechStack); err != nil {
		return nil, fmt.Errorf("decoding tech stack of %s: %w", p.Slug, err)
	}
	return &p, nil
}

// ListProjects returns all projects in display order.
func (r *Repository) ListProjects() (projects []*Project, err error) {
	rows, err := r.db.Query(fmt.Sprintf("SELECT %s FROM projects ORDER BY position, id", projectColumns))
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	projects = []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}

	return projects, nil
}

// GetProject looks a project up by numeric ID or slug.
func (r *Repository) GetProject(ref string) (*Project, error) {
	var row *sql.Row
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		row = r.db.QueryRow(fmt.Sprintf("SELECT %s FROM projects WHERE id = ? OR slug = ?", projectColumns), id, ref)
	} else {
		row = r.db.QueryRow(fmt.Sprintf("SELECT %s FROM projects WHERE slug = ?", projectColumns), ref)
	}

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying project %s: %w", ref, err)
	}
	return p, nil
}

// ListCertificates returns all certificates in display order.
func (r *Repository) ListCertificates() (certs []*Certificate, err error) {
	rows, err := r.db.Query("SELECT id, title, img, position FROM certificates ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("listing certificates: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	certs = []*Certificate{}
	for rows.Next() {
		var c Certificate
		if err := rows.Scan(&c.ID, &c.Title, &c.Img, &c.Position); err != nil {
			return nil, fmt.Errorf("scanning certificate: %w", err)
		}
		certs = append(certs, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating certificates: %w", err)
	}

	return certs, nil
}

// Profile returns the stored profile, or DefaultProfile when none is stored.
func (r *Repository) Profile() (Profile, error) {
	var raw string
	err := r.db.QueryRow("SELECT yaml FROM profile WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultProfile(), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal([]byte(raw), &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}

// Replace swaps all projects, certificates and the profile for those in c
// inside a single transaction.
func (r *Repository) Replace(c *Content) error {
	profileYAML, err := yaml.Marshal(c.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("rolling back content replace", "err", rbErr)
		}
	}()

	for _, stmt := range []string{"DELETE FROM projects", "DELETE FROM certificates"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clearing content: %w", err)
		}
	}

	for i, p := range c.Projects {
		features, err := json.Marshal(nonNil(p.Features))
		if err != nil {
			return fmt.Errorf("encoding features of %s: %w", p.Slug, err)
		}
		techStack, err := json.Marshal(nonNil(p.TechStack))
		if err != nil {
			return fmt.Errorf("encoding tech stack of %s: %w", p.Slug, err)
		}
		_, err = tx.Exec(`INSERT INTO projects
			(slug, title, description, img, link, github, features, tech_stack, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Slug, p.Title, p.Description, p.Img, p.Link, p.Github, string(features), string(techStack), i,
		)
		if err != nil {
			return fmt.Errorf("inserting project %s: %w", p.Slug, err)
		}
	}

	for i, cert := range c.Certificates {
		if _, err := tx.Exec("INSERT INTO certificates (title, img, position) VALUES (?, ?, ?)", cert.Title, cert.Img, i); err != nil {
			return fmt.Errorf("inserting certificate %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO profile (id, yaml) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET yaml = excluded.yaml`, string(profileYAML)); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing content: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
