package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// These collectors track the per-source-task and per-alert counters the
// pipeline accumulates over one run, alongside the stats it logs at the
// end of RunOnce. They are pushed to a Pushgateway, since the process
// exits before a scrape could ever reach it.
var (
	TasksPolledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "tasks",
			Name:      "polled_total",
			Help:      "Total number of source tasks selected for processing.",
		},
		[]string{"source"},
	)

	TasksSucceededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "tasks",
			Name:      "succeeded_total",
			Help:      "Total number of source tasks that completed without error.",
		},
		[]string{"source"},
	)

	TaskErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "tasks",
			Name:      "errors_total",
			Help:      "Total number of source tasks that failed.",
		},
		[]string{"source"},
	)

	TasksDeferredBudgetTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "tasks",
			Name:      "deferred_budget_total",
			Help:      "Total number of source tasks deferred because the daily request budget was exhausted.",
		},
		[]string{"source"},
	)

	SourceMentionsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "source",
			Name:      "mentions_fetched_total",
			Help:      "Total number of raw candidates returned by a source adapter.",
		},
		[]string{"source"},
	)

	MentionsUpsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "mentions",
			Name:      "upserted_total",
			Help:      "Total number of mention rows inserted or updated.",
		},
		[]string{"source"},
	)

	MatchesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "matches",
			Name:      "created_total",
			Help:      "Total number of new keyword-to-mention matches recorded.",
		},
		[]string{"source"},
	)

	MatchesDedupedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "matches",
			Name:      "deduped_total",
			Help:      "Total number of candidate matches skipped because they already existed.",
		},
		[]string{"source"},
	)

	AlertsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "alerts",
			Name:      "enqueued_total",
			Help:      "Total number of alert deliveries enqueued.",
		},
	)

	AlertsDedupedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "alerts",
			Name:      "deduped_total",
			Help:      "Total number of alert deliveries skipped because one already existed for the same match and channel.",
		},
	)

	AlertsAttemptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "alerts",
			Name:      "attempted_total",
			Help:      "Total number of alert delivery attempts made.",
		},
	)

	AlertsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "alerts",
			Name:      "sent_total",
			Help:      "Total number of alert deliveries confirmed sent.",
		},
	)

	AlertsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "alerts",
			Name:      "failed_total",
			Help:      "Total number of alert delivery attempts that failed.",
		},
	)

	RunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "signalwatch",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a single worker run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	SourceBreakerOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalwatch",
			Subsystem: "source",
			Name:      "breaker_open_total",
			Help:      "Total number of source task attempts rejected by an open circuit breaker.",
		},
		[]string{"source"},
	)
)

// All returns every collector this worker registers, for wiring into a
// prometheus.Registry at startup.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		TasksPolledTotal,
		TasksSucceededTotal,
		TaskErrorsTotal,
		TasksDeferredBudgetTotal,
		SourceMentionsFetchedTotal,
		MentionsUpsertedTotal,
		MatchesCreatedTotal,
		MatchesDedupedTotal,
		AlertsEnqueuedTotal,
		AlertsDedupedTotal,
		AlertsAttemptedTotal,
		AlertsSentTotal,
		AlertsFailedTotal,
		RunDurationSeconds,
		SourceBreakerOpenTotal,
	}
}

// PushRun pushes the run's accumulated metrics to a Pushgateway. The
// worker is a one-shot batch job with no long-lived process a scraper
// could ever reach, so metrics are pushed rather than served.
func PushRun(ctx context.Context, gatewayURL string, registry *prometheus.Registry) error {
	if gatewayURL == "" {
		return nil
	}
	pusher := push.New(gatewayURL, "signalwatch_mention_worker").Gatherer(registry)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing run metrics to pushgateway: %w", err)
	}
	return nil
}
