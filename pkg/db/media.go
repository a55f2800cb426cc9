package db

import (
	"context"
	"fmt"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

const mediaColumns = `id, expression_id, url, url_hash, type, width, height, format, file_size,
	dominant_colors, is_processed, created_at`

// CreateMedia records a media reference on an expression. It reports false
// when the expression already has a media row for the same URL.
func (db *DB) CreateMedia(ctx context.Context, expressionID int64, f models.MediaFields) (bool, error) {
	if f.URL == "" {
		return false, fmt.Errorf("media url is required")
	}
	switch f.Type {
	case models.MediaImage, models.MediaVideo, models.MediaAudio:
	default:
		return false, fmt.Errorf("unknown media type %q", f.Type)
	}

	res, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO media (expression_id, url, url_hash, type, width, height, format, file_size, dominant_colors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (expression_id, url_hash) DO NOTHING
	`), expressionID, f.URL, urlnorm.Hash(f.URL), f.Type, f.Width, f.Height, f.Format, f.FileSize, f.DominantColors, db.now())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert media: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MediaHashesForExpression returns the url hashes already stored for an
// expression, for dedup before extraction.
func (db *DB) MediaHashesForExpression(ctx context.Context, expressionID int64) (map[string]struct{}, error) {
	var hashes []string
	if err := db.SelectContext(ctx, &hashes, db.Rebind(`SELECT url_hash FROM media WHERE expression_id = ?`), expressionID); err != nil {
		return nil, fmt.Errorf("failed to select media hashes: %w", err)
	}
	known := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		known[h] = struct{}{}
	}
	return known, nil
}

func (db *DB) ListMedia(ctx context.Context, expressionID int64) ([]models.Media, error) {
	var out []models.Media
	err := db.SelectContext(ctx, &out, db.Rebind(`SELECT `+mediaColumns+` FROM media WHERE expression_id = ? ORDER BY id`), expressionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return out, nil
}
