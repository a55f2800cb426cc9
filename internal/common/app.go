// Package common holds what every command needs: configuration, logging,
// the database and the crawler wiring.
package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/archive"
	"github.com/dtnitsch/mywi/pkg/caching"
	"github.com/dtnitsch/mywi/pkg/capabilities"
	"github.com/dtnitsch/mywi/pkg/db"
	"github.com/dtnitsch/mywi/pkg/domain"
	"github.com/dtnitsch/mywi/pkg/extractor"
	"github.com/dtnitsch/mywi/pkg/fetcher"
	"github.com/dtnitsch/mywi/pkg/lexicon"
	"github.com/dtnitsch/mywi/pkg/llmgate"
	"github.com/dtnitsch/mywi/pkg/merge"
	"github.com/dtnitsch/mywi/pkg/metrics"
	"github.com/dtnitsch/mywi/pkg/pipeline"
	"github.com/dtnitsch/mywi/pkg/progress"
)

// Env is the per-invocation context shared by actions.
type Env struct {
	Config  *models.Config
	Logger  *slog.Logger
	DB      *db.DB
	Metrics *metrics.Metrics

	closers []func() error
}

// Setup loads configuration, applies global flags and opens the database.
func Setup(c *cli.Context) (*Env, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("db"); v != "" {
		cfg.Database.URL = v
	}
	if v := c.String("metrics-addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := &Env{
		Config:  cfg,
		Logger:  NewLogger(cfg.Log, c.Bool("quiet"), c.Bool("verbose")),
		Metrics: metrics.New(nil),
	}

	database, err := db.Open(c.Context, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	env.DB = database
	env.closers = append(env.closers, database.Close)

	return env, nil
}

// Close releases everything Setup and BuildCrawler opened.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger. quiet and verbose override the
// configured level.
func NewLogger(cfg models.LogConfig, quiet, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if quiet {
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// ServeMetrics starts the metrics endpoint in the background when an
// address is configured. It stops with ctx.
func (e *Env) ServeMetrics(ctx context.Context) {
	if e.Config.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := e.Metrics.Serve(ctx, e.Config.Metrics.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Warn("Metrics server stopped", "addr", e.Config.Metrics.Addr, "error", err)
		}
	}()
	e.Logger.Info("Serving metrics", "addr", e.Config.Metrics.Addr)
}

// BuildCrawler wires the pipeline from configuration and the capability
// report.
func (e *Env) BuildCrawler(ctx context.Context, land *models.Land) (*pipeline.Crawler, capabilities.Report, error) {
	cfg := e.Config
	caps := capabilities.Discover(ctx, cfg, e.Logger)

	strategy, err := merge.ParseStrategy(cfg.Crawler.MergeStrategy)
	if err != nil {
		return nil, caps, err
	}

	httpClient := &http.Client{}
	pages := fetcher.NewFetcherWithClient(httpClient, fetcher.Options{
		UserAgent:     cfg.Crawler.UserAgent,
		Timeout:       cfg.Crawler.HTTPTimeout,
		MaxBodyBytes:  cfg.Crawler.MaxBodyBytes,
		RatePerHost:   cfg.Crawler.RatePerHost,
		RespectRobots: cfg.Crawler.RespectRobots,
	})
	// Archive snapshots are not subject to the site's robots.txt.
	snapshots := fetcher.NewFetcherWithClient(httpClient, fetcher.Options{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      cfg.Crawler.ArchiveTimeout,
		MaxBodyBytes: cfg.Crawler.MaxBodyBytes,
	})

	var languages []string
	if land != nil {
		languages = land.Languages
	}
	detector := lexicon.NewDetector(languages)

	archiver := archive.NewClient(httpClient, cfg.Crawler.ArchiveBaseURL, cfg.Crawler.UserAgent)
	if dir := cfg.Crawler.ArchiveCacheDir; dir != "" {
		cache, err := caching.NewCache(dir, cfg.Crawler.ArchiveCacheTTL)
		if err != nil {
			return nil, caps, err
		}
		archiver.WithCache(cache, e.Logger)
	}

	ext := extractor.New(
		pages,
		archiver,
		snapshots,
		detector,
		extractor.Options{
			MinReadableWords: cfg.Crawler.MinReadableWords,
			ArchiveTimeout:   cfg.Crawler.ArchiveTimeout,
			DirectRetries:    1,
		},
		e.Metrics,
		e.Logger,
	)

	gate, err := e.buildGate(ctx, caps)
	if err != nil {
		return nil, caps, err
	}

	return &pipeline.Crawler{
		Store:       e.DB,
		Extractor:   ext,
		Pages:       pages,
		Detector:    detector,
		Gate:        gate,
		Heuristics:  domain.LoadHeuristics(cfg.Heuristics, e.Logger),
		Strategy:    strategy,
		TitleWeight: cfg.Crawler.TitleWeight,
		Workers:     cfg.Crawler.Workers,
		StaleAfter:  cfg.Crawler.ClaimStaleAfter,
		Progress:    e.progress(caps),
		Metrics:     e.Metrics,
		Logger:      e.Logger,
	}, caps, nil
}

func (e *Env) buildGate(ctx context.Context, caps capabilities.Report) (*llmgate.Gate, error) {
	if !caps.LLM {
		return nil, nil
	}
	cfg := e.Config.LLM

	var provider llmgate.Provider
	switch cfg.Provider {
	case "gemini":
		g, err := llmgate.NewGemini(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		provider = g
	default:
		provider = llmgate.NewOpenRouter(&http.Client{Timeout: cfg.Timeout}, cfg.BaseURL, cfg.APIKey)
	}

	return &llmgate.Gate{
		Enabled:      true,
		Provider:     provider,
		Model:        cfg.Model,
		MaxAttempts:  cfg.MaxAttempts,
		Timeout:      cfg.Timeout,
		ExcerptChars: cfg.ExcerptChars,
		Metrics:      e.Metrics,
		Logger:       e.Logger,
	}, nil
}

func (e *Env) progress(caps capabilities.Report) progress.Reporter {
	logReporter := progress.Log{Logger: e.Logger}
	if !caps.Redis {
		return logReporter
	}
	client := redis.NewClient(&redis.Options{Addr: caps.RedisAddr})
	e.closers = append(e.closers, client.Close)
	return progress.Multi{logReporter, progress.NewRedis(client, e.Config.Progress.Stream)}
}
