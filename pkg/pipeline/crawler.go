// Package pipeline drives lands through extraction, scoring, merging and
// breadth-first link discovery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/db"
	"github.com/dtnitsch/mywi/pkg/domain"
	"github.com/dtnitsch/mywi/pkg/extractor"
	"github.com/dtnitsch/mywi/pkg/lexicon"
	"github.com/dtnitsch/mywi/pkg/llmgate"
	"github.com/dtnitsch/mywi/pkg/media"
	"github.com/dtnitsch/mywi/pkg/merge"
	"github.com/dtnitsch/mywi/pkg/metrics"
	"github.com/dtnitsch/mywi/pkg/progress"
	"github.com/dtnitsch/mywi/pkg/relevance"
	"github.com/dtnitsch/mywi/pkg/urlnorm"
)

const (
	DefaultWorkers    = 4
	defaultStaleAfter = 30 * time.Minute
	keywordCount      = 10
)

// Store is the persistence the pipeline needs. *db.DB implements it.
type Store interface {
	GetLand(ctx context.Context, id int64) (*models.Land, error)
	DictionaryForLand(ctx context.Context, landID int64) ([]models.DictionaryEntry, error)
	CountPending(ctx context.Context, landID int64) (int, error)
	CountExpressions(ctx context.Context, landID int64) (int, error)
	ClaimExpressions(ctx context.Context, landID int64, f db.FrontierFilter, token string, staleAfter time.Duration) ([]models.Expression, error)
	ReleaseClaim(ctx context.Context, id int64, token string) error
	ListExpressions(ctx context.Context, q db.ExpressionQuery) ([]models.Expression, error)
	UpdateExpression(ctx context.Context, id int64, patch models.ExpressionPatch) (*models.Expression, error)
	GetOrCreateExpression(ctx context.Context, landID int64, rawURL string, depth int) (*models.Expression, bool, error)
	FindExpression(ctx context.Context, landID int64, rawURL string) (*models.Expression, error)
	GetOrCreateDomain(ctx context.Context, landID int64, name string) (*models.Domain, error)
	DomainsToCrawl(ctx context.Context, landID int64, limit int) ([]models.Domain, error)
	UpdateDomainMeta(ctx context.Context, id int64, meta db.DomainMeta) error
	CreateMedia(ctx context.Context, expressionID int64, f models.MediaFields) (bool, error)
	MediaHashesForExpression(ctx context.Context, expressionID int64) (map[string]struct{}, error)
	CreateLink(ctx context.Context, sourceID, targetID int64, meta models.LinkMeta) (*models.ExpressionLink, error)
	RecordRun(ctx context.Context, run db.Run) (int64, error)
}

// Extractor is satisfied by *extractor.Extractor.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) models.ExtractionResult
}

// Crawler holds the collaborators shared by every job. The zero values of
// the optional fields are usable: no gate, no progress, no metrics.
type Crawler struct {
	Store      Store
	Extractor  Extractor
	Pages      extractor.PageFetcher // domain home pages
	Detector   *lexicon.Detector
	Gate       *llmgate.Gate
	Heuristics domain.Heuristics
	Strategy   merge.Strategy

	TitleWeight float64
	Workers     int
	StaleAfter  time.Duration

	Progress progress.Reporter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	now func() time.Time
}

// ItemOutcome is what happened to one expression.
type ItemOutcome struct {
	ExpressionID int64
	URL          string
	Source       string
	Relevance    float64
	Updated      bool
	Extracted    bool
	NewLinks     int
	Media        int
	Err          error
}

// itemOptions tune ProcessExpression for crawl versus consolidation.
type itemOptions struct {
	strategy   merge.Strategy
	confirmLLM bool
	scorer     relevance.Scorer
}

func (c *Crawler) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Crawler) clock() time.Time {
	if c.now != nil {
		return c.now().UTC()
	}
	return time.Now().UTC()
}

func (c *Crawler) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}

func (c *Crawler) staleAfter() time.Duration {
	if c.StaleAfter > 0 {
		return c.StaleAfter
	}
	return defaultStaleAfter
}

func (c *Crawler) reporter() progress.Reporter {
	if c.Progress == nil {
		return progress.Nop{}
	}
	return c.Progress
}

// ProcessExpression evaluates one expression of land with the crawler's
// default strategy and without LLM consent.
func (c *Crawler) ProcessExpression(ctx context.Context, land models.Land, dict []models.DictionaryEntry, expr models.Expression) ItemOutcome {
	return c.process(ctx, land, dict, expr, itemOptions{
		strategy: c.Strategy,
		scorer:   relevance.NewScorer(c.TitleWeight, land.PrimaryLanguage()),
	})
}

func (c *Crawler) process(ctx context.Context, land models.Land, dict []models.DictionaryEntry, expr models.Expression, opts itemOptions) ItemOutcome {
	out := ItemOutcome{ExpressionID: expr.ID, URL: expr.URL}
	logger := c.logger().With("land_id", land.ID, "expression_id", expr.ID, "url", expr.URL)

	ext := c.Extractor.Extract(ctx, expr.URL)
	out.Source = ext.Source
	out.Extracted = ext.Success
	if ext.Success && ext.Keywords == "" {
		ext.Keywords = strings.Join(lexicon.TopKeywords(lexicon.WordFrequency(ext.Text), keywordCount), ", ")
	}

	patch := merge.Merge(expr, ext, opts.strategy)

	merged := expr
	patch.Apply(&merged)

	score := opts.scorer.Compute(merged.Title, scoringText(merged, ext), dict)
	if score > 0 {
		verdict := c.Gate.Validate(ctx, land, dict, merged, opts.confirmLLM)
		if verdict.Checked {
			patch.ValidLLM = models.Ptr(verdict.Relevant)
			patch.ValidModel = models.Ptr(verdict.Model)
			if !verdict.Relevant {
				score = 0
			}
		} else if verdict.Err != nil {
			logger.Warn("LLM gate skipped", "error", verdict.Err)
		}
	}
	if score != expr.Relevance {
		patch.Relevance = models.Ptr(score)
	}
	out.Relevance = score

	merge.MarkEvaluated(&patch, expr, ext, c.clock())

	if expr.DomainID == nil {
		target := ext.FinalURL
		if target == "" {
			target = expr.URL
		}
		if name := domain.Resolve(target, c.Heuristics); name != "" {
			d, err := c.Store.GetOrCreateDomain(ctx, land.ID, name)
			if err != nil {
				out.Err = err
				return out
			}
			patch.DomainID = models.Ptr(d.ID)
		}
	}

	if _, err := c.Store.UpdateExpression(ctx, expr.ID, patch); err != nil {
		out.Err = fmt.Errorf("failed to save expression %d: %w", expr.ID, err)
		return out
	}
	out.Updated = true

	if !ext.Success {
		logger.Info("Extraction failed", "error_code", ext.ErrorCode, "error", ext.ErrorMessage)
		return out
	}

	base := ext.FinalURL
	if base == "" {
		base = expr.URL
	}

	n, err := c.saveMedia(ctx, expr.ID, base, ext)
	out.Media = n
	if err != nil {
		out.Err = err
		return out
	}

	n, err = c.enqueueLinks(ctx, land, expr, base, ext)
	out.NewLinks = n
	if err != nil {
		out.Err = err
		return out
	}

	logger.Debug("Expression processed", "source", ext.Source, "relevance", score, "new_links", out.NewLinks, "media", out.Media)
	return out
}

// scoringText picks the body text for relevance: the fresh plain text when
// its readable won the merge, the stored readable otherwise.
func scoringText(merged models.Expression, ext models.ExtractionResult) string {
	if ext.Success && ext.Readable == merged.Readable && ext.Text != "" {
		return ext.Text
	}
	return merged.Readable
}

// linkSource returns the document links are read from: the article HTML for
// readability sources, the raw HTML for the direct fallback.
func linkSource(ext models.ExtractionResult) string {
	if ext.Rich() && ext.ArticleHTML != "" {
		return ext.ArticleHTML
	}
	return ext.Content
}

func (c *Crawler) saveMedia(ctx context.Context, expressionID int64, base string, ext models.ExtractionResult) (int, error) {
	known, err := c.Store.MediaHashesForExpression(ctx, expressionID)
	if err != nil {
		return 0, err
	}

	saved := 0
	for _, content := range []string{ext.Readable, ext.Content} {
		if content == "" {
			continue
		}
		for _, m := range media.ExtractMedia(content, base, known) {
			ok, err := c.Store.CreateMedia(ctx, expressionID, m)
			if err != nil {
				return saved, err
			}
			known[urlnorm.Hash(m.URL)] = struct{}{}
			if ok {
				saved++
			}
		}
	}
	return saved, nil
}

// enqueueLinks creates the targets of expr's links one level deeper and
// records the edges. Nothing is enqueued past the land's crawl depth. Once
// the land holds crawl_size expressions only edges to existing targets are
// recorded.
func (c *Crawler) enqueueLinks(ctx context.Context, land models.Land, expr models.Expression, base string, ext models.ExtractionResult) (int, error) {
	depth := expr.Depth + 1
	if depth > land.CrawlDepth {
		return 0, nil
	}
	links := media.ExtractLinks(linkSource(ext), base)
	if len(links) == 0 {
		return 0, nil
	}

	room := -1
	if land.CrawlSize > 0 {
		total, err := c.Store.CountExpressions(ctx, land.ID)
		if err != nil {
			return 0, err
		}
		room = land.CrawlSize - total
	}

	created := 0
	for _, l := range links {
		var (
			target *models.Expression
			isNew  bool
			err    error
		)
		if room == 0 {
			target, err = c.Store.FindExpression(ctx, land.ID, l.URL)
			if errors.Is(err, db.ErrNotFound) {
				continue
			}
		} else {
			target, isNew, err = c.Store.GetOrCreateExpression(ctx, land.ID, l.URL, depth)
		}
		if err != nil {
			c.logger().Debug("Skipping link", "url", l.URL, "error", err)
			continue
		}
		if isNew {
			created++
			if room > 0 {
				room--
			}
		}
		if _, err := c.Store.CreateLink(ctx, expr.ID, target.ID, l.Meta()); err != nil {
			return created, err
		}
	}
	return created, nil
}

func isNothingToClaim(err error) bool {
	return errors.Is(err, db.ErrNothingToClaim)
}
