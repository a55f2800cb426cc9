package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/mywi/models"
)

const domainColumns = `id, land_id, name, title, description, keywords, language, http_status, fetched_at, created_at`

// GetOrCreateDomain returns the domain named name in landID, inserting it
// when missing. Two workers racing on the same name both get the one row.
func (db *DB) GetOrCreateDomain(ctx context.Context, landID int64, name string) (*models.Domain, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("domain name is required")
	}

	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO domains (land_id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT (name, land_id) DO NOTHING
	`), landID, name, db.now())
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to insert domain: %w", err)
	}

	var d models.Domain
	err = db.GetContext(ctx, &d, db.Rebind(`SELECT `+domainColumns+` FROM domains WHERE name = ? AND land_id = ?`), name, landID)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain %q: %w", name, err)
	}
	return &d, nil
}

func (db *DB) GetDomain(ctx context.Context, id int64) (*models.Domain, error) {
	var d models.Domain
	err := db.GetContext(ctx, &d, db.Rebind(`SELECT `+domainColumns+` FROM domains WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("domain %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return &d, nil
}

// DomainsToCrawl lists domains of a land whose home page was never fetched.
// Limit 0 means unbounded.
func (db *DB) DomainsToCrawl(ctx context.Context, landID int64, limit int) ([]models.Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM domains WHERE land_id = ? AND fetched_at IS NULL ORDER BY id`
	args := []any{landID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []models.Domain
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select domains: %w", err)
	}
	return out, nil
}

// ListDomains returns every domain of a land by name.
func (db *DB) ListDomains(ctx context.Context, landID int64) ([]models.Domain, error) {
	var out []models.Domain
	err := db.SelectContext(ctx, &out, db.Rebind(`SELECT `+domainColumns+` FROM domains WHERE land_id = ? ORDER BY name`), landID)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return out, nil
}

// DomainMeta is what a domain home-page fetch records.
type DomainMeta struct {
	Title       string
	Description string
	Keywords    string
	Language    string
	HTTPStatus  int
}

// UpdateDomainMeta stores the home-page metadata and marks the domain
// fetched.
func (db *DB) UpdateDomainMeta(ctx context.Context, id int64, meta DomainMeta) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE domains
		SET title = ?, description = ?, keywords = ?, language = ?, http_status = ?, fetched_at = ?
		WHERE id = ?
	`), meta.Title, meta.Description, meta.Keywords, meta.Language, meta.HTTPStatus, db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update domain: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("domain %d: %w", id, ErrNotFound)
	}
	return nil
}
