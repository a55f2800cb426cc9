package db

import (
	"context"
	"fmt"

	"github.com/dtnitsch/mywi/models"
)

// CreateLink records the edge source -> target. Self links and edges that
// already exist are ignored and return nil, nil.
func (db *DB) CreateLink(ctx context.Context, sourceID, targetID int64, meta models.LinkMeta) (*models.ExpressionLink, error) {
	if sourceID == targetID {
		return nil, nil
	}

	link := models.ExpressionLink{
		SourceID:   sourceID,
		TargetID:   targetID,
		AnchorText: meta.AnchorText,
		LinkType:   meta.LinkType,
		Rel:        meta.Rel,
		Position:   meta.Position,
		CreatedAt:  db.now(),
	}
	res, err := db.NamedExecContext(ctx, `
		INSERT INTO expression_links (source_id, target_id, anchor_text, link_type, rel, position, created_at)
		VALUES (:source_id, :target_id, :anchor_text, :link_type, :rel, :position, :created_at)
		ON CONFLICT (source_id, target_id) DO NOTHING
	`, link)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to insert link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return &link, nil
}

// LinksFrom returns the outgoing edges of an expression.
func (db *DB) LinksFrom(ctx context.Context, sourceID int64) ([]models.ExpressionLink, error) {
	var out []models.ExpressionLink
	err := db.SelectContext(ctx, &out, db.Rebind(`
		SELECT source_id, target_id, anchor_text, link_type, rel, position, created_at
		FROM expression_links WHERE source_id = ? ORDER BY position, target_id
	`), sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return out, nil
}

// CountLinks returns the number of edges whose source is in landID.
func (db *DB) CountLinks(ctx context.Context, landID int64) (int, error) {
	var n int
	err := db.GetContext(ctx, &n, db.Rebind(`
		SELECT COUNT(*) FROM expression_links l
		JOIN expressions e ON e.id = l.source_id
		WHERE e.land_id = ?
	`), landID)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return n, nil
}
