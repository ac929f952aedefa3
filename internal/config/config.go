// Package config assembles the worker's typed Config from environment
// variables. Static fields are parsed with caarlos0/env; the per-source
// registry fields are populated by hand because their env var names are
// built from each registry.Definition's EnvSlug and caarlos0/env has no
// way to express a dynamically-keyed struct tag.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/deep1283/signalwatch/pkg/registry"
)

// Config holds all worker configuration, loaded once at process start.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	WorkerLockKey int `env:"WORKER_LOCK_KEY" envDefault:"84521791"`

	PollIntervalMinutes  int `env:"POLL_INTERVAL_MINUTES" envDefault:"15" validate:"min=1"`
	SourceOverlapMinutes int `env:"SOURCE_OVERLAP_MINUTES" envDefault:"3" validate:"min=0"`
	PerSourceResultLimit int `env:"PER_SOURCE_RESULT_LIMIT" envDefault:"40" validate:"min=1"`
	SourceTaskBatchSize  int `env:"SOURCE_TASK_BATCH_SIZE" envDefault:"300" validate:"min=1"`

	AlertBatchSize        int `env:"ALERT_BATCH_SIZE" envDefault:"250" validate:"min=1"`
	MaxAlertRetries       int `env:"MAX_ALERT_RETRIES" envDefault:"3" validate:"min=0"`
	AlertRetryBaseSeconds int `env:"ALERT_RETRY_BASE_SECONDS" envDefault:"60" validate:"min=1"`
	AlertRetryMaxSeconds  int `env:"ALERT_RETRY_MAX_SECONDS" envDefault:"1800" validate:"min=1"`

	FreeTierMode bool `env:"FREE_TIER_MODE" envDefault:"true"`

	RedditClientID     string `env:"REDDIT_CLIENT_ID"`
	RedditClientSecret string `env:"REDDIT_CLIENT_SECRET"`
	RedditUserAgent    string `env:"REDDIT_USER_AGENT" envDefault:"mention-worker/1.0"`
	GitHubToken        string `env:"GITHUB_TOKEN"`
	GoogleAPIKey       string `env:"GOOGLE_API_KEY"`
	GoogleCSEID        string `env:"GOOGLE_CSE_ID"`
	BraveAPIKey        string `env:"BRAVE_API_KEY"`
	DevToTopDays       int    `env:"DEVTO_TOP_DAYS" envDefault:"7" validate:"min=1"`

	RequestTimeoutSeconds float64 `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"20" validate:"min=1"`

	PushgatewayURL string `env:"PUSHGATEWAY_URL"`

	// Per-source overrides, keyed by registry.Definition.Key. Populated by
	// applySourceOverrides, not by the env struct tags above.
	SourceEnabled           map[string]bool
	SourcePollIntervalMins  map[string]int
	SourceDailyRequestLimit map[string]*int
}

var validate = validator.New()

// Load reads configuration from the environment, applies the per-source
// registry overrides, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}

	applySourceOverrides(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applySourceOverrides walks the static source catalog and, for each
// entry, reads SOURCE_<SLUG>_ENABLED / _POLL_INTERVAL_MINUTES /
// _DAILY_REQUEST_LIMIT, falling back to the registry's defaults and the
// worker-wide poll interval. This mirrors the per-source loop in the
// original implementation's settings loader, which the same dynamic-key
// requirement rules out of caarlos0/env's declarative struct tags.
func applySourceOverrides(cfg *Config) {
	cfg.SourceEnabled = make(map[string]bool, len(registry.Definitions))
	cfg.SourcePollIntervalMins = make(map[string]int, len(registry.Definitions))
	cfg.SourceDailyRequestLimit = make(map[string]*int, len(registry.Definitions))

	for _, def := range registry.Definitions {
		enabledVar := fmt.Sprintf("SOURCE_%s_ENABLED", def.EnvSlug)
		cfg.SourceEnabled[def.Key] = parseBool(os.Getenv(enabledVar), def.DefaultEnabled)

		pollVar := fmt.Sprintf("SOURCE_%s_POLL_INTERVAL_MINUTES", def.EnvSlug)
		pollMinutes := cfg.PollIntervalMinutes
		if raw := os.Getenv(pollVar); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				pollMinutes = parsed
			}
		}
		if pollMinutes < 1 {
			pollMinutes = 1
		}
		cfg.SourcePollIntervalMins[def.Key] = pollMinutes

		limitVar := fmt.Sprintf("SOURCE_%s_DAILY_REQUEST_LIMIT", def.EnvSlug)
		limit := parseOptionalPositiveInt(os.Getenv(limitVar))
		if limit == nil && cfg.FreeTierMode {
			limit = def.FreeTierDailyLimit
		}
		cfg.SourceDailyRequestLimit[def.Key] = limit
	}
}

// parseBool parses {1,true,yes,on} case-insensitively as true, and
// everything else (including unset/empty) as the given default.
func parseBool(value string, def bool) bool {
	if value == "" {
		return def
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return def
	}
}

// parseOptionalPositiveInt returns nil for an unset, blank, unparsable,
// or non-positive value — "no explicit limit" in all those cases.
func parseOptionalPositiveInt(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 1 {
		return nil
	}
	return &parsed
}

// IsSourceEnabled reports whether a source is enabled for this run.
func (c *Config) IsSourceEnabled(key string) bool {
	return c.SourceEnabled[key]
}

// PollIntervalForSource returns the configured poll interval in minutes
// for a source, falling back to the worker-wide default.
func (c *Config) PollIntervalForSource(key string) int {
	if v, ok := c.SourcePollIntervalMins[key]; ok {
		return v
	}
	return c.PollIntervalMinutes
}

// DailyRequestLimitForSource returns the per-UTC-day request cap for a
// source, or nil when uncapped.
func (c *Config) DailyRequestLimitForSource(key string) *int {
	return c.SourceDailyRequestLimit[key]
}

// BuildDeps projects the credentials and tunables adapters need out of
// the full Config, without handing adapters the whole struct.
func (c *Config) BuildDeps() registry.BuildDeps {
	return registry.BuildDeps{
		RedditClientID:     c.RedditClientID,
		RedditClientSecret: c.RedditClientSecret,
		RedditUserAgent:    c.RedditUserAgent,
		DevToTopDays:       c.DevToTopDays,
		GitHubToken:        c.GitHubToken,
		GoogleAPIKey:       c.GoogleAPIKey,
		GoogleCSEID:        c.GoogleCSEID,
		BraveAPIKey:        c.BraveAPIKey,
	}
}
