package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/deep1283/signalwatch/internal/store"
	"github.com/deep1283/signalwatch/internal/telemetry"
	"github.com/deep1283/signalwatch/pkg/mention"
	"github.com/deep1283/signalwatch/pkg/registry"
)

// processSourceTasks fetches due (keyword, source) tasks and drives each
// one through budget admission, the source adapter, and persistence.
// A failure on any single task is logged and backed off; it never aborts
// the batch.
func (p *Pipeline) processSourceTasks(
	ctx context.Context,
	conn store.Executor,
	adapters map[string]registry.Source,
	breakers map[string]*gobreaker.CircuitBreaker,
	st *stats,
	requestsToday map[string]int,
) {
	sourceKeys := make([]string, 0, len(adapters))
	for key := range adapters {
		sourceKeys = append(sourceKeys, key)
	}
	sort.Strings(sourceKeys)

	tasks, err := p.store.FetchDueSourceTasks(ctx, conn, p.cfg.SourceTaskBatchSize, sourceKeys)
	if err != nil {
		p.logger.Error("fetch_due_source_tasks_failed", "error", err)
		return
	}

	for _, task := range tasks {
		st.TasksPolled++
		telemetry.TasksPolledTotal.WithLabelValues(task.Source).Inc()
		p.processOneSourceTask(ctx, conn, task, adapters, breakers, st, requestsToday)
	}
}

func (p *Pipeline) processOneSourceTask(
	ctx context.Context,
	conn store.Executor,
	task store.SourceTask,
	adapters map[string]registry.Source,
	breakers map[string]*gobreaker.CircuitBreaker,
	st *stats,
	requestsToday map[string]int,
) {
	adapter, ok := adapters[task.Source]
	if !ok {
		p.failTask(ctx, conn, task, st, "source not enabled in worker", p.cfg.PollIntervalForSource(task.Source))
		return
	}

	if limit := p.cfg.DailyRequestLimitForSource(task.Source); limit != nil && requestsToday[task.Source] >= *limit {
		backoff := minutesUntilUTCDayRollover(time.Now())
		if err := p.store.MarkSourceTaskError(ctx, conn, task.KeywordID, task.Source, "daily request budget exhausted", backoff); err != nil {
			p.logger.Error("mark_source_task_error_failed", "source", task.Source, "error", err)
		}
		st.TasksDeferredBudget++
		telemetry.TasksDeferredBudgetTotal.WithLabelValues(task.Source).Inc()
		return
	}

	since := sinceWatermark(task.LastCheckedAt, p.cfg.SourceOverlapMinutes)

	breaker := breakers[task.Source]
	result, err := breaker.Execute(func() (interface{}, error) {
		return adapter.Search(ctx, task.Query, since, p.cfg.PerSourceResultLimit)
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		telemetry.SourceBreakerOpenTotal.WithLabelValues(task.Source).Inc()
		p.failTask(ctx, conn, task, st, "source circuit breaker open", p.cfg.PollIntervalForSource(task.Source))
		return
	}

	// A request reached the adapter either way; charge the daily budget
	// regardless of outcome, matching the original's per-request billing.
	if incErr := p.store.IncrementSourceRequestCount(ctx, conn, task.Source); incErr != nil {
		p.logger.Error("increment_source_request_count_failed", "source", task.Source, "error", incErr)
	}
	requestsToday[task.Source]++
	st.SourceRequestsRun[task.Source]++

	if err != nil {
		p.failTask(ctx, conn, task, st, err.Error(), p.cfg.PollIntervalForSource(task.Source))
		return
	}

	candidates, _ := result.([]mention.Candidate)
	st.SourceMentionsFetched += len(candidates)
	telemetry.SourceMentionsFetchedTotal.WithLabelValues(task.Source).Add(float64(len(candidates)))

	if err := p.persistCandidates(ctx, conn, task, candidates, st); err != nil {
		p.failTask(ctx, conn, task, st, err.Error(), p.cfg.PollIntervalForSource(task.Source))
		return
	}

	checkedAt := time.Now().UTC()
	if err := p.store.MarkSourceTaskSuccess(ctx, conn, task.KeywordID, task.Source, checkedAt, p.cfg.PollIntervalForSource(task.Source)); err != nil {
		p.logger.Error("mark_source_task_success_failed", "source", task.Source, "error", err)
		st.TaskErrors++
		telemetry.TaskErrorsTotal.WithLabelValues(task.Source).Inc()
		return
	}

	st.TasksSucceeded++
	telemetry.TasksSucceededTotal.WithLabelValues(task.Source).Inc()
}

// persistCandidates upserts each candidate, records the match, and
// enqueues an alert for every genuinely new match. Dedup at the match
// stage is expected and not an error; a storage error is.
func (p *Pipeline) persistCandidates(ctx context.Context, conn store.Executor, task store.SourceTask, candidates []mention.Candidate, st *stats) error {
	for _, c := range candidates {
		mentionID, err := p.store.UpsertMention(ctx, conn, c)
		if err != nil {
			return err
		}
		st.MentionsUpserted++
		telemetry.MentionsUpsertedTotal.WithLabelValues(task.Source).Inc()

		inserted, err := p.store.InsertMentionMatch(ctx, conn, task.UserID, task.KeywordID, task.BrandID, mentionID, task.Query)
		if err != nil {
			return err
		}
		if !inserted {
			st.MatchesDeduped++
			telemetry.MatchesDedupedTotal.WithLabelValues(task.Source).Inc()
			continue
		}
		st.MatchesCreated++
		telemetry.MatchesCreatedTotal.WithLabelValues(task.Source).Inc()

		enqueued, err := p.store.EnqueueAlert(ctx, conn, task.UserID, task.KeywordID, mentionID)
		if err != nil {
			return err
		}
		if enqueued {
			st.AlertsEnqueued++
			telemetry.AlertsEnqueuedTotal.Inc()
		} else {
			st.AlertsDeduped++
			telemetry.AlertsDedupedTotal.Inc()
		}
	}
	return nil
}

func (p *Pipeline) failTask(ctx context.Context, conn store.Executor, task store.SourceTask, st *stats, reason string, backoffMinutes int) {
	if err := p.store.MarkSourceTaskError(ctx, conn, task.KeywordID, task.Source, reason, backoffMinutes); err != nil {
		p.logger.Error("mark_source_task_error_failed", "source", task.Source, "error", err)
	}
	st.TaskErrors++
	telemetry.TaskErrorsTotal.WithLabelValues(task.Source).Inc()
}

// sinceWatermark computes the lower bound a source should search from: the
// last successful check (or 24h ago for a never-checked task), pulled back
// by overlapMinutes to tolerate clock skew and late-arriving items.
func sinceWatermark(lastCheckedAt *time.Time, overlapMinutes int) time.Time {
	base := time.Now().UTC().Add(-24 * time.Hour)
	if lastCheckedAt != nil {
		base = *lastCheckedAt
	}
	return base.Add(-time.Duration(overlapMinutes) * time.Minute)
}
