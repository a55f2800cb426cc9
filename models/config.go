// Package models defines data structures for configuration, lands, expressions and extraction results.
package models

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration. It is built once at startup and
// passed by pointer to the components that need it.
type Config struct {
	Database   DatabaseConfig `yaml:"database"`
	Crawler    CrawlerConfig  `yaml:"crawler"`
	Heuristics string         `yaml:"heuristics"` // path to suffix -> regex map
	LLM        LLMConfig      `yaml:"llm"`
	Progress   ProgressConfig `yaml:"progress"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Log        LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" validate:"required"`
}

type CrawlerConfig struct {
	Workers          int           `yaml:"workers" validate:"min=1,max=64"`
	UserAgent        string        `yaml:"user_agent" validate:"required"`
	HTTPTimeout      time.Duration `yaml:"http_timeout" validate:"gt=0"`
	ArchiveTimeout   time.Duration `yaml:"archive_timeout" validate:"gt=0"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" validate:"gt=0"`
	RespectRobots    bool          `yaml:"respect_robots"`
	RatePerHost      float64       `yaml:"rate_per_host" validate:"gte=0"` // requests per second, 0 = unlimited
	MinReadableWords int           `yaml:"min_readable_words" validate:"gte=1"`
	TitleWeight      float64       `yaml:"title_weight" validate:"gte=1"`
	MergeStrategy    string        `yaml:"merge_strategy" validate:"oneof=preserve_existing mercury_priority smart_merge"`
	ArchiveBaseURL   string        `yaml:"archive_base_url" validate:"required,url"`
	ArchiveCacheDir  string        `yaml:"archive_cache_dir"` // empty disables the lookup cache
	ArchiveCacheTTL  time.Duration `yaml:"archive_cache_ttl" validate:"gt=0"`
	ClaimStaleAfter  time.Duration `yaml:"claim_stale_after" validate:"gt=0"`
}

type LLMConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Provider     string        `yaml:"provider" validate:"oneof=openrouter gemini"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAttempts  int           `yaml:"max_attempts" validate:"min=1,max=10"`
	ExcerptChars int           `yaml:"excerpt_chars" validate:"min=100"`
}

type ProgressConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Stream    string `yaml:"stream"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: "mywi.db"},
		Crawler: CrawlerConfig{
			Workers:          4,
			UserAgent:        "mywi/1.0 (+https://github.com/dtnitsch/mywi)",
			HTTPTimeout:      15 * time.Second,
			ArchiveTimeout:   20 * time.Second,
			MaxBodyBytes:     10 << 20,
			RespectRobots:    true,
			RatePerHost:      2,
			MinReadableWords: 30,
			TitleWeight:      10,
			MergeStrategy:    "smart_merge",
			ArchiveBaseURL:   "https://archive.org",
			ArchiveCacheTTL:  24 * time.Hour,
			ClaimStaleAfter:  30 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:     "openrouter",
			Model:        "openai/gpt-4o-mini",
			BaseURL:      "https://openrouter.ai/api/v1",
			Timeout:      30 * time.Second,
			MaxAttempts:  3,
			ExcerptChars: 1000,
		},
		Progress: ProgressConfig{Stream: "mywi:progress"},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies
// .env and environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// .env is optional; values already present in the environment win.
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MYWI_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("MYWI_OPENROUTER_API_KEY"); v != "" && c.LLM.Provider == "openrouter" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MYWI_GEMINI_API_KEY"); v != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MYWI_REDIS_ADDR"); v != "" {
		c.Progress.RedisAddr = v
	}
	if v := os.Getenv("MYWI_HEURISTICS"); v != "" {
		c.Heuristics = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
