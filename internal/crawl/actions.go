package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mywi/internal/common"
	"github.com/dtnitsch/mywi/internal/land"
	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/merge"
	"github.com/dtnitsch/mywi/pkg/pipeline"
)

// session is a land plus a crawler wired for it.
type session struct {
	env     *common.Env
	land    *models.Land
	crawler *pipeline.Crawler
}

func open(c *cli.Context) (*session, error) {
	env, err := common.Setup(c)
	if err != nil {
		return nil, err
	}
	l, err := land.Resolve(c, env.DB, c.String("land"))
	if err != nil {
		env.Close()
		return nil, err
	}
	crawler, caps, err := env.BuildCrawler(c.Context, l)
	if err != nil {
		env.Close()
		return nil, err
	}
	if c.IsSet("workers") {
		crawler.Workers = c.Int("workers")
	}
	env.Logger.Debug("Capabilities", "llm", caps.LLM, "redis", caps.Redis, "database", caps.Database)
	env.ServeMetrics(c.Context)
	return &session{env: env, land: l, crawler: crawler}, nil
}

func landOptions(c *cli.Context) pipeline.LandOptions {
	opts := pipeline.LandOptions{
		Limit:      c.Int("limit"),
		ConfirmLLM: c.Bool("confirm-llm"),
	}
	if c.IsSet("http") {
		status := c.Int("http")
		opts.HTTPStatus = &status
	}
	if c.IsSet("depth") {
		depth := c.Int("depth")
		opts.Depth = &depth
	}
	return opts
}

func printReport(r *pipeline.Report) error {
	if r == nil {
		return nil
	}
	fmt.Printf("%s: %s processed, %s updated, %s errors in %s\n",
		r.Kind,
		humanize.Comma(int64(r.Processed)),
		humanize.Comma(int64(r.Updated)),
		humanize.Comma(int64(r.Errors)),
		r.Duration.Round(time.Millisecond),
	)
	return common.PrintYAML(r)
}

func CrawlAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.env.Close()

	report, err := s.crawler.ProcessLand(c.Context, s.land.ID, landOptions(c))
	if perr := printReport(report); perr != nil && err == nil {
		err = perr
	}
	return err
}

func ConsolidateAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.env.Close()

	strategy := s.crawler.Strategy
	if c.IsSet("strategy") {
		if strategy, err = merge.ParseStrategy(c.String("strategy")); err != nil {
			return err
		}
	}

	report, err := s.crawler.Consolidate(c.Context, s.land.ID, strategy, c.Int("limit"))
	if perr := printReport(report); perr != nil && err == nil {
		err = perr
	}
	return err
}

func DomainsAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.env.Close()

	report, err := s.crawler.CrawlDomains(c.Context, s.land.ID, c.Int("limit"))
	if perr := printReport(report); perr != nil && err == nil {
		err = perr
	}
	return err
}

// WatchAction crawls the land on a schedule until interrupted.
func WatchAction(c *cli.Context) error {
	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.env.Close()

	logger := s.env.Logger.With("land_id", s.land.ID)
	clog := cronLogger{logger}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	scheduler := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	opts := landOptions(c)
	withDomains := c.Bool("domains")
	job := func() {
		report, err := s.crawler.ProcessLand(c.Context, s.land.ID, opts)
		if err != nil {
			logger.Error("Scheduled crawl failed", "error", err)
		} else {
			logger.Info("Scheduled crawl finished", "processed", report.Processed, "updated", report.Updated, "errors", report.Errors)
		}
		if !withDomains || c.Context.Err() != nil {
			return
		}
		if _, err := s.crawler.CrawlDomains(c.Context, s.land.ID, 0); err != nil {
			logger.Error("Scheduled domain crawl failed", "error", err)
		}
	}

	schedule := c.String("schedule")
	if _, err := scheduler.AddFunc(schedule, job); err != nil {
		return fmt.Errorf("failed to parse schedule %q: %w", schedule, err)
	}

	logger.Info("Watching land", "name", s.land.Name, "schedule", schedule)
	scheduler.Start()
	if c.Bool("now") {
		go job()
	}

	<-c.Context.Done()
	logger.Info("Stopping scheduler")
	done := scheduler.Stop()

	wait, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	select {
	case <-done.Done():
	case <-wait.Done():
		logger.Warn("Timed out waiting for running crawl")
	}
	return nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
