// Package app wires together a single worker invocation: config, database
// and cache connections, the shared HTTP client, and the pipeline itself.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deep1283/signalwatch/internal/config"
	"github.com/deep1283/signalwatch/internal/pipeline"
	"github.com/deep1283/signalwatch/internal/platform"
	"github.com/deep1283/signalwatch/internal/telemetry"
)

// Run executes one worker invocation end to end and returns the process
// exit code. A non-nil error always pairs with a non-zero code; the
// reverse is not guaranteed, since RunOnce logs its own failures before
// returning a bare code.
func Run(ctx context.Context, cfg *config.Config) (int, error) {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return 1, fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return 1, fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()

	httpClient := &http.Client{
		Timeout: time.Duration(cfg.RequestTimeoutSeconds * float64(time.Second)),
	}

	deps := cfg.BuildDeps()
	deps.RedisClient = platform.TokenCache{Client: redisClient}

	registry := prometheus.NewRegistry()
	registry.MustRegister(telemetry.All()...)

	pl := pipeline.New(cfg, pool, logger, httpClient, deps)

	start := time.Now()
	code := pl.RunOnce(ctx)
	telemetry.RunDurationSeconds.Observe(time.Since(start).Seconds())

	if err := telemetry.PushRun(ctx, cfg.PushgatewayURL, registry); err != nil {
		logger.Error("pushgateway_push_failed", "error", err)
	}

	return code, nil
}
