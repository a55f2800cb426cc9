package db

import (
	"context"
	"fmt"
	"time"
)

// Run kinds.
const (
	RunCrawl       = "crawl"
	RunConsolidate = "consolidate"
	RunDomains     = "domains"
)

// Run is the persisted report of one batch job over a land.
type Run struct {
	ID         int64     `db:"id" yaml:"id"`
	LandID     int64     `db:"land_id" yaml:"land_id"`
	Kind       string    `db:"kind" yaml:"kind"`
	Processed  int       `db:"processed" yaml:"processed"`
	Updated    int       `db:"updated" yaml:"updated"`
	Errors     int       `db:"errors" yaml:"errors"`
	Skipped    int       `db:"skipped" yaml:"skipped"`
	DurationMS int64     `db:"duration_ms" yaml:"duration_ms"`
	StartedAt  time.Time `db:"started_at" yaml:"started_at"`
	FinishedAt time.Time `db:"finished_at" yaml:"finished_at"`
}

// Duration returns the run's wall time.
func (r Run) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// RecordRun stores a finished run and returns its id.
func (db *DB) RecordRun(ctx context.Context, run Run) (int64, error) {
	if run.Kind == "" {
		return 0, fmt.Errorf("run kind is required")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = db.now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt.Add(-run.Duration())
	}

	var id int64
	err := db.QueryRowxContext(ctx, db.Rebind(`
		INSERT INTO runs (land_id, kind, processed, updated, errors, skipped, duration_ms, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), run.LandID, run.Kind, run.Processed, run.Updated, run.Errors, run.Skipped, run.DurationMS,
		run.StartedAt.UTC(), run.FinishedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs of a land, newest first.
func (db *DB) ListRuns(ctx context.Context, landID int64, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Run
	err := db.SelectContext(ctx, &out, db.Rebind(`
		SELECT id, land_id, kind, processed, updated, errors, skipped, duration_ms, started_at, finished_at
		FROM runs WHERE land_id = ? ORDER BY started_at DESC, id DESC LIMIT ?
	`), landID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}
