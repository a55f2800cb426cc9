package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

const expressionColumns = `id, land_id, url, url_hash, depth, domain_id, http_status, title, description,
	keywords, content, readable, summary, language, word_count, relevance, quality_score,
	sentiment_score, sentiment_label, valid_llm, valid_model, extraction_source,
	extraction_duration, extraction_retries, extraction_error, published_at, created_at,
	crawled_at, approved_at, readable_at, claimed_at, claim_token`

const frontierOrder = ` ORDER BY depth ASC, created_at ASC, id ASC`

// FrontierFilter narrows frontier selection. Limit 0 means unbounded.
type FrontierFilter struct {
	Limit      int
	HTTPStatus *int
	Depth      *int
}

func (f FrontierFilter) where(args []any) (string, []any) {
	var sb strings.Builder
	if f.HTTPStatus != nil {
		sb.WriteString(" AND http_status = ?")
		args = append(args, *f.HTTPStatus)
	}
	if f.Depth != nil {
		sb.WriteString(" AND depth = ?")
		args = append(args, *f.Depth)
	}
	return sb.String(), args
}

// GetOrCreateExpression returns the expression for (landID, rawURL),
// creating it at depth when absent. The URL is canonicalized first; the
// boolean reports whether a new row was inserted. Concurrent callers for the
// same URL all receive the single row.
func (db *DB) GetOrCreateExpression(ctx context.Context, landID int64, rawURL string, depth int) (*models.Expression, bool, error) {
	canonical, err := urlnorm.Canonicalize(rawURL)
	if err != nil {
		return nil, false, fmt.Errorf("invalid expression url %q: %w", rawURL, err)
	}
	hash := urlnorm.Hash(canonical)

	res, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO expressions (land_id, url, url_hash, depth, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (land_id, url_hash, url) DO NOTHING
	`), landID, canonical, hash, depth, db.now())
	if err != nil && !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to insert expression: %w", err)
	}
	created := false
	if err == nil {
		n, _ := res.RowsAffected()
		created = n > 0
	}

	var expr models.Expression
	err = db.GetContext(ctx, &expr, db.Rebind(`SELECT `+expressionColumns+`
		FROM expressions WHERE land_id = ? AND url_hash = ? AND url = ?`), landID, hash, canonical)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load expression: %w", err)
	}
	return &expr, created, nil
}

// FindExpression returns the existing expression for (landID, rawURL)
// without creating it. A missing row wraps ErrNotFound.
func (db *DB) FindExpression(ctx context.Context, landID int64, rawURL string) (*models.Expression, error) {
	canonical, err := urlnorm.Canonicalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid expression url %q: %w", rawURL, err)
	}

	var expr models.Expression
	err = db.GetContext(ctx, &expr, db.Rebind(`SELECT `+expressionColumns+`
		FROM expressions WHERE land_id = ? AND url_hash = ? AND url = ?`), landID, urlnorm.Hash(canonical), canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expression %s: %w", canonical, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find expression: %w", err)
	}
	return &expr, nil
}

func (db *DB) GetExpression(ctx context.Context, id int64) (*models.Expression, error) {
	var expr models.Expression
	err := db.GetContext(ctx, &expr, db.Rebind(`SELECT `+expressionColumns+` FROM expressions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expression %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expression: %w", err)
	}
	return &expr, nil
}

// ExpressionsToCrawl lists pending expressions (approved_at IS NULL) in
// breadth-first order.
func (db *DB) ExpressionsToCrawl(ctx context.Context, landID int64, f FrontierFilter) ([]models.Expression, error) {
	filter, args := f.where([]any{landID})
	query := `SELECT ` + expressionColumns + ` FROM expressions
		WHERE land_id = ? AND approved_at IS NULL` + filter + frontierOrder
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var out []models.Expression
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select frontier: %w", err)
	}
	return out, nil
}

// ClaimExpressions atomically marks up to f.Limit pending, unclaimed
// expressions with token and returns them in frontier order. Claims older
// than staleAfter are considered abandoned and may be taken again.
func (db *DB) ClaimExpressions(ctx context.Context, landID int64, f FrontierFilter, token string, staleAfter time.Duration) ([]models.Expression, error) {
	if f.Limit <= 0 {
		return nil, fmt.Errorf("claim limit must be positive")
	}
	now := db.now()
	stale := now.Add(-staleAfter)

	filter, inner := f.where([]any{landID, stale})
	inner = append(inner, f.Limit)

	query := `UPDATE expressions SET claimed_at = ?, claim_token = ?
		WHERE id IN (
			SELECT id FROM expressions
			WHERE land_id = ? AND approved_at IS NULL
			  AND (claimed_at IS NULL OR claimed_at < ?)` + filter + frontierOrder + `
			LIMIT ?` + db.claimLock() + `
		)
		AND approved_at IS NULL AND (claimed_at IS NULL OR claimed_at < ?)
		RETURNING ` + expressionColumns

	args := append([]any{now, token}, inner...)
	args = append(args, stale)

	var out []models.Expression
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to claim expressions: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNothingToClaim
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// ReleaseClaim clears a claim held by token so the row returns to the
// frontier.
func (db *DB) ReleaseClaim(ctx context.Context, id int64, token string) error {
	_, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE expressions SET claimed_at = NULL, claim_token = NULL
		WHERE id = ? AND claim_token = ?
	`), id, token)
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

// UpdateExpression validates patch and writes its non-nil fields.
func (db *DB) UpdateExpression(ctx context.Context, id int64, patch models.ExpressionPatch) (*models.Expression, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return db.GetExpression(ctx, id)
	}

	cols, args := patchColumns(patch)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	args = append(args, id)

	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE expressions SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update expression: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("expression %d: %w", id, ErrNotFound)
	}
	return db.GetExpression(ctx, id)
}

// patchColumns lists the columns and values of the set fields of p.
func patchColumns(p models.ExpressionPatch) ([]string, []any) {
	var (
		cols []string
		args []any
	)
	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
	}
	utc := func(t *time.Time) time.Time { return t.UTC() }

	if p.DomainID != nil {
		add("domain_id", *p.DomainID)
	}
	if p.HTTPStatus != nil {
		add("http_status", *p.HTTPStatus)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Keywords != nil {
		add("keywords", *p.Keywords)
	}
	if p.Content != nil {
		add("content", *p.Content)
	}
	if p.Readable != nil {
		add("readable", *p.Readable)
	}
	if p.Language != nil {
		add("language", *p.Language)
	}
	if p.WordCount != nil {
		add("word_count", *p.WordCount)
	}
	if p.Relevance != nil {
		add("relevance", *p.Relevance)
	}
	if p.QualityScore != nil {
		add("quality_score", *p.QualityScore)
	}
	if p.ValidLLM != nil {
		add("valid_llm", *p.ValidLLM)
	}
	if p.ValidModel != nil {
		add("valid_model", *p.ValidModel)
	}
	if p.ExtractionSource != nil {
		add("extraction_source", *p.ExtractionSource)
	}
	if p.ExtractionDuration != nil {
		add("extraction_duration", *p.ExtractionDuration)
	}
	if p.ExtractionRetries != nil {
		add("extraction_retries", *p.ExtractionRetries)
	}
	if p.ExtractionError != nil {
		add("extraction_error", *p.ExtractionError)
	}
	if p.PublishedAt != nil {
		add("published_at", utc(p.PublishedAt))
	}
	if p.CrawledAt != nil {
		add("crawled_at", utc(p.CrawledAt))
	}
	if p.ApprovedAt != nil {
		add("approved_at", utc(p.ApprovedAt))
	}
	if p.ReadableAt != nil {
		add("readable_at", utc(p.ReadableAt))
	}
	return cols, args
}

// ExpressionQuery selects expressions for listing. By default expressions
// with relevance 0 are left out.
type ExpressionQuery struct {
	LandID            int64
	IncludeIrrelevant bool
	MinRelevance      float64
	ApprovedOnly      bool
	Limit             int
}

func (db *DB) ListExpressions(ctx context.Context, q ExpressionQuery) ([]models.Expression, error) {
	query := `SELECT ` + expressionColumns + ` FROM expressions WHERE land_id = ?`
	args := []any{q.LandID}
	if !q.IncludeIrrelevant {
		query += ` AND relevance > 0`
	}
	if q.MinRelevance > 0 {
		query += ` AND relevance >= ?`
		args = append(args, q.MinRelevance)
	}
	if q.ApprovedOnly {
		query += ` AND approved_at IS NOT NULL`
	}
	query += ` ORDER BY relevance DESC, id ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	var out []models.Expression
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list expressions: %w", err)
	}
	return out, nil
}

// CountExpressions returns the number of expressions in a land.
func (db *DB) CountExpressions(ctx context.Context, landID int64) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM expressions WHERE land_id = ?`), landID); err != nil {
		return 0, fmt.Errorf("failed to count expressions: %w", err)
	}
	return n, nil
}

// CountPending returns the number of frontier items in a land.
func (db *DB) CountPending(ctx context.Context, landID int64) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM expressions WHERE land_id = ? AND approved_at IS NULL`), landID); err != nil {
		return 0, fmt.Errorf("failed to count pending expressions: %w", err)
	}
	return n, nil
}
