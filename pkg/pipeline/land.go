package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/db"
	"github.com/dtnitsch/mywi/pkg/merge"
	"github.com/dtnitsch/mywi/pkg/progress"
	"github.com/dtnitsch/mywi/pkg/relevance"
)

// LandOptions select which frontier items a crawl processes.
type LandOptions struct {
	Limit      int // 0 = until the frontier is empty
	HTTPStatus *int
	Depth      *int
	ConfirmLLM bool
}

// ItemError is a failure attached to one expression.
type ItemError struct {
	ExpressionID int64  `yaml:"expression_id"`
	URL          string `yaml:"url"`
	Error        string `yaml:"error"`
}

// Report summarizes one job.
type Report struct {
	LandID     int64         `yaml:"land_id"`
	Kind       string        `yaml:"kind"`
	Processed  int           `yaml:"processed"`
	Updated    int           `yaml:"updated"`
	Errors     int           `yaml:"errors"`
	Skipped    int           `yaml:"skipped"`
	NewLinks   int           `yaml:"new_links"`
	Media      int           `yaml:"media"`
	Duration   time.Duration `yaml:"duration"`
	ItemErrors []ItemError   `yaml:"item_errors,omitempty"`

	mu sync.Mutex
}

func (r *Report) add(out ItemOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Processed++
	r.NewLinks += out.NewLinks
	r.Media += out.Media
	if out.Updated {
		r.Updated++
	}
	if !out.Extracted {
		r.Skipped++
	}
	if out.Err != nil {
		r.Errors++
		r.ItemErrors = append(r.ItemErrors, ItemError{ExpressionID: out.ExpressionID, URL: out.URL, Error: out.Err.Error()})
	}
}

func (r *Report) run(started time.Time) db.Run {
	return db.Run{
		LandID:     r.LandID,
		Kind:       r.Kind,
		Processed:  r.Processed,
		Updated:    r.Updated,
		Errors:     r.Errors,
		Skipped:    r.Skipped,
		DurationMS: r.Duration.Milliseconds(),
		StartedAt:  started,
		FinishedAt: started.Add(r.Duration),
	}
}

// ProcessLand crawls the pending frontier of a land in breadth-first order.
// Batches are claimed atomically so several processes may crawl the same
// land. Item failures are counted in the report; only store and context
// failures abort the job.
func (c *Crawler) ProcessLand(ctx context.Context, landID int64, opts LandOptions) (*Report, error) {
	started := time.Now()
	report := &Report{LandID: landID, Kind: db.RunCrawl}

	land, dict, err := c.loadLand(ctx, landID)
	if err != nil {
		return nil, err
	}
	total, err := c.Store.CountPending(ctx, landID)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && opts.Limit < total {
		total = opts.Limit
	}

	logger := c.logger().With("land_id", landID, "land", land.Name)
	logger.Info("Starting crawl", "pending", total, "workers", c.workers(), "dictionary", len(dict))

	item := itemOptions{
		strategy:   c.Strategy,
		confirmLLM: opts.ConfirmLLM,
		scorer:     relevance.NewScorer(c.TitleWeight, land.PrimaryLanguage()),
	}
	token := uuid.NewString()
	var failed []int64

	for opts.Limit == 0 || report.Processed < opts.Limit {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, report, started, token, failed, err)
		}

		batch := c.workers() * 4
		if opts.Limit > 0 && opts.Limit-report.Processed < batch {
			batch = opts.Limit - report.Processed
		}
		claimed, err := c.Store.ClaimExpressions(ctx, landID, db.FrontierFilter{
			Limit:      batch,
			HTTPStatus: opts.HTTPStatus,
			Depth:      opts.Depth,
		}, token, c.staleAfter())
		if isNothingToClaim(err) {
			break
		}
		if err != nil {
			return c.finish(ctx, report, started, token, failed, fmt.Errorf("failed to claim frontier: %w", err))
		}
		c.Metrics.ObserveClaim(len(claimed))

		for _, out := range c.runBatch(ctx, *land, dict, claimed, item, report) {
			if !out.Updated {
				failed = append(failed, out.ExpressionID)
			}
		}

		if err := c.reporter().Report(ctx, progress.Event{
			LandID: landID, Kind: report.Kind, Processed: report.Processed, Total: total,
			Message: fmt.Sprintf("%d updated, %d errors", report.Updated, report.Errors),
		}); err != nil {
			logger.Warn("Failed to publish progress", "error", err)
		}
	}

	return c.finish(ctx, report, started, token, failed, nil)
}

// runBatch processes exprs on a bounded worker pool and returns every
// outcome.
func (c *Crawler) runBatch(ctx context.Context, land models.Land, dict []models.DictionaryEntry, exprs []models.Expression, opts itemOptions, report *Report) []ItemOutcome {
	outcomes := make([]ItemOutcome, len(exprs))

	var g errgroup.Group
	g.SetLimit(c.workers())
	for i, expr := range exprs {
		g.Go(func() error {
			out := c.process(ctx, land, dict, expr, opts)
			outcomes[i] = out
			report.add(out)
			switch {
			case out.Err != nil:
				c.Metrics.ObserveExpression("error")
			case !out.Extracted:
				c.Metrics.ObserveExpression("failed")
			case out.Relevance > 0:
				c.Metrics.ObserveExpression("relevant")
			default:
				c.Metrics.ObserveExpression("irrelevant")
			}
			return nil
		})
	}
	_ = g.Wait() // items never return errors
	return outcomes
}

// finish releases claims on rows that were not saved, stores the run and
// returns the report with cause.
func (c *Crawler) finish(ctx context.Context, report *Report, started time.Time, token string, failed []int64, cause error) (*Report, error) {
	report.Duration = time.Since(started)

	// Use a fresh context so cleanup still runs after cancellation.
	cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for _, id := range failed {
		if err := c.Store.ReleaseClaim(cleanup, id, token); err != nil {
			c.logger().Warn("Failed to release claim", "expression_id", id, "error", err)
		}
	}
	if _, err := c.Store.RecordRun(cleanup, report.run(started)); err != nil {
		c.logger().Warn("Failed to record run", "land_id", report.LandID, "error", err)
	}

	c.logger().Info("Job finished",
		"land_id", report.LandID,
		"kind", report.Kind,
		"processed", report.Processed,
		"updated", report.Updated,
		"errors", report.Errors,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)
	return report, cause
}

func (c *Crawler) loadLand(ctx context.Context, landID int64) (*models.Land, []models.DictionaryEntry, error) {
	land, err := c.Store.GetLand(ctx, landID)
	if err != nil {
		return nil, nil, err
	}
	dict, err := c.Store.DictionaryForLand(ctx, landID)
	if err != nil {
		return nil, nil, err
	}
	return land, dict, nil
}

// Consolidate re-extracts approved expressions with a positive relevance and
// merges the result under strategy. limit 0 processes all of them.
func (c *Crawler) Consolidate(ctx context.Context, landID int64, strategy merge.Strategy, limit int) (*Report, error) {
	started := time.Now()
	report := &Report{LandID: landID, Kind: db.RunConsolidate}

	land, dict, err := c.loadLand(ctx, landID)
	if err != nil {
		return nil, err
	}
	exprs, err := c.Store.ListExpressions(ctx, db.ExpressionQuery{LandID: landID, ApprovedOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}

	c.logger().Info("Starting consolidation", "land_id", landID, "expressions", len(exprs), "strategy", strategy)
	item := itemOptions{
		strategy: strategy,
		scorer:   relevance.NewScorer(c.TitleWeight, land.PrimaryLanguage()),
	}

	batch := c.workers() * 4
	for start := 0; start < len(exprs); start += batch {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, report, started, "", nil, err)
		}
		end := min(start+batch, len(exprs))
		c.runBatch(ctx, *land, dict, exprs[start:end], item, report)

		if err := c.reporter().Report(ctx, progress.Event{
			LandID: landID, Kind: report.Kind, Processed: report.Processed, Total: len(exprs),
		}); err != nil {
			c.logger().Warn("Failed to publish progress", "error", err)
		}
	}

	return c.finish(ctx, report, started, "", nil, nil)
}
