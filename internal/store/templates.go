package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/exampaper/internal/config"
)

// ErrTemplateNotFound is returned when no template has the requested name.
var ErrTemplateNotFound = errors.New("template not found")

// Template is a saved, named export configuration.
type Template struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Config      config.ExportConfiguration `json:"config"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}

// SaveTemplate creates or replaces the template t.Name. CreatedAt is kept
// across replacements.
func (s *Store) SaveTemplate(t Template) error {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode template %s: %w", t.Name, err)
	}
	ts := now()
	_, err = s.db.Exec(
		`INSERT INTO export_templates (name, description, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET description = excluded.description,
			config = excluded.config, updated_at = excluded.updated_at`,
		t.Name, t.Description, string(cfg), ts, ts,
	)
	return err
}

// GetTemplate returns the named template or ErrTemplateNotFound.
func (s *Store) GetTemplate(name string) (*Template, error) {
	t, err := scanTemplate(s.db.QueryRow(
		`SELECT name, description, config, created_at, updated_at FROM export_templates WHERE name = ?`, name,
	))
	if err == sql.ErrNoRows {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns every saved template ordered by name.
func (s *Store) ListTemplates() ([]Template, error) {
	rows, err := s.db.Query(`SELECT name, description, config, created_at, updated_at FROM export_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes the named template or returns ErrTemplateNotFound.
func (s *Store) DeleteTemplate(name string) error {
	res, err := s.db.Exec(`DELETE FROM export_templates WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func scanTemplate(sc scanner) (Template, error) {
	var (
		t   Template
		cfg string
	)
	if err := sc.Scan(&t.Name, &t.Description, &cfg, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(cfg), &t.Config); err != nil {
		return t, fmt.Errorf("decode template %s: %w", t.Name, err)
	}
	return t, nil
}
