// Package capabilities probes optional integrations once at startup so the
// rest of the program can branch on a plain report.
package capabilities

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dtnitsch/mywi/models"
	"github.com/dtnitsch/mywi/pkg/domain"
)

// Report lists what this process can use.
type Report struct {
	LLM         bool     `yaml:"llm"`
	LLMProvider string   `yaml:"llm_provider,omitempty"`
	LLMModel    string   `yaml:"llm_model,omitempty"`
	Redis       bool     `yaml:"redis"`
	RedisAddr   string   `yaml:"redis_addr,omitempty"`
	Metrics     bool     `yaml:"metrics"`
	Languages   []string `yaml:"languages"`
	Heuristics  int      `yaml:"heuristics"`
	Database    string   `yaml:"database"`
}

// Stemmed lists the languages with a stemmer; others match on surface form.
var Stemmed = []string{"en", "fr", "es", "ru", "sv", "no", "nb", "hu"}

// Discover builds the report for cfg. Redis is pinged with a short timeout;
// nothing else touches the network.
func Discover(ctx context.Context, cfg *models.Config, logger *slog.Logger) Report {
	if logger == nil {
		logger = slog.Default()
	}

	r := Report{
		Languages:  Stemmed,
		Metrics:    cfg.Metrics.Addr != "",
		Database:   databaseKind(cfg.Database.URL),
		Heuristics: domain.LoadHeuristics(cfg.Heuristics, logger).Len(),
	}

	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" && cfg.LLM.Model != "" {
		r.LLM = true
		r.LLMProvider = cfg.LLM.Provider
		r.LLMModel = cfg.LLM.Model
	}

	if cfg.Progress.RedisAddr != "" {
		r.RedisAddr = cfg.Progress.RedisAddr
		if err := pingRedis(ctx, cfg.Progress.RedisAddr); err != nil {
			logger.Warn("Redis unavailable, progress goes to the log only", "addr", cfg.Progress.RedisAddr, "error", err)
		} else {
			r.Redis = true
		}
	}

	return r
}

func pingRedis(ctx context.Context, addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func databaseKind(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}
