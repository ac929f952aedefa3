// Package pipeline is the worker's single entry point: acquire the
// cluster-wide singleton lock, open a run, poll due source tasks,
// drive pending alert deliveries, and close the run. See tasks.go for
// the source-task loop and alerts.go for the alert delivery loop.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/deep1283/signalwatch/internal/config"
	"github.com/deep1283/signalwatch/internal/store"
	"github.com/deep1283/signalwatch/pkg/registry"
)

// Pipeline owns one worker invocation's dependencies.
type Pipeline struct {
	cfg     *config.Config
	store   *store.Store
	logger  *slog.Logger
	httpCli *http.Client
	deps    registry.BuildDeps
}

// New creates a Pipeline. httpClient is shared across every source
// adapter and the alert sender for the lifetime of one run.
func New(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger, httpClient *http.Client, deps registry.BuildDeps) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   store.New(pool),
		logger:  logger,
		httpCli: httpClient,
		deps:    deps,
	}
}

// stats accumulates the counters reported in the run's closing log line
// and pushed as metrics; its zero value is ready to use.
type stats struct {
	TasksPolled           int            `json:"tasks_polled"`
	TasksSucceeded        int            `json:"tasks_succeeded"`
	TaskErrors            int            `json:"task_errors"`
	TasksDeferredBudget   int            `json:"tasks_deferred_budget"`
	SourceMentionsFetched int            `json:"source_mentions_fetched"`
	MentionsUpserted      int            `json:"mentions_upserted"`
	MatchesCreated        int            `json:"matches_created"`
	MatchesDeduped        int            `json:"matches_deduped"`
	AlertsEnqueued        int            `json:"alerts_enqueued"`
	AlertsDeduped         int            `json:"alerts_deduped"`
	AlertsAttempted       int            `json:"alerts_attempted"`
	AlertsSent            int            `json:"alerts_sent"`
	AlertsFailed          int            `json:"alerts_failed"`
	SourceRequestsRun     map[string]int `json:"source_requests"`
}

func newStats() *stats {
	return &stats{SourceRequestsRun: make(map[string]int)}
}

func (s *stats) asMap() map[string]any {
	return map[string]any{
		"tasks_polled":            s.TasksPolled,
		"tasks_succeeded":         s.TasksSucceeded,
		"task_errors":             s.TaskErrors,
		"tasks_deferred_budget":   s.TasksDeferredBudget,
		"source_mentions_fetched": s.SourceMentionsFetched,
		"mentions_upserted":       s.MentionsUpserted,
		"matches_created":         s.MatchesCreated,
		"matches_deduped":         s.MatchesDeduped,
		"alerts_enqueued":         s.AlertsEnqueued,
		"alerts_deduped":          s.AlertsDeduped,
		"alerts_attempted":        s.AlertsAttempted,
		"alerts_sent":             s.AlertsSent,
		"alerts_failed":           s.AlertsFailed,
		"source_requests":         s.SourceRequestsRun,
	}
}

// RunOnce performs a single worker invocation and returns the process
// exit code (0 on success or clean skip, 1 on failure).
func (p *Pipeline) RunOnce(ctx context.Context) int {
	conn, err := p.store.Pool().Acquire(ctx)
	if err != nil {
		p.logger.Error("worker_connect_failed", "error", err)
		return 1
	}
	defer conn.Release()

	locked, err := p.store.TryAdvisoryLock(ctx, conn, int64(p.cfg.WorkerLockKey))
	if err != nil {
		p.logger.Error("worker_lock_error", "error", err)
		return 1
	}
	if !locked {
		p.logger.Info("worker_skip", "reason", "lock_not_acquired")
		return 0
	}

	runID, err := p.store.CreateWorkerRun(ctx, conn)
	if err != nil {
		p.logger.Error("worker_run_create_failed", "error", err)
		return 1
	}
	p.logger.Info("worker_start", "run_id", runID.String())

	st := newStats()

	adapters, breakers := p.buildAdapters()

	sourceKeys := make([]string, 0, len(adapters))
	for key := range adapters {
		sourceKeys = append(sourceKeys, key)
	}

	requestsToday, err := p.store.FetchTodaySourceRequests(ctx, conn, sourceKeys)
	if err != nil {
		finishErr := fmt.Errorf("fetching today's source requests: %w", err)
		_ = p.store.FinishWorkerRun(ctx, conn, runID, "failed", st.asMap(), finishErr)
		p.logger.Error("worker_failed", "run_id", runID.String(), "error", finishErr.Error())
		return 1
	}

	p.processSourceTasks(ctx, conn, adapters, breakers, st, requestsToday)
	p.processAlerts(ctx, conn, st)

	if err := p.store.FinishWorkerRun(ctx, conn, runID, "success", st.asMap(), nil); err != nil {
		p.logger.Error("worker_run_finish_failed", "run_id", runID.String(), "error", err)
		return 1
	}

	p.logger.Info("worker_success", "run_id", runID.String(), "stats", st.asMap())
	return 0
}

// minutesUntilUTCDayRollover returns how many whole minutes remain until
// the next UTC midnight, floored at 1.
func minutesUntilUTCDayRollover(now time.Time) int {
	now = now.UTC()
	nextDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	minutes := int(nextDay.Sub(now).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// newBreaker builds the per-source circuit breaker that wraps each
// Source.Search call, so that repeated upstream failures trip it instead
// of burning the daily request budget on a provider that is already down.
func newBreaker(sourceKey string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        sourceKey,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
