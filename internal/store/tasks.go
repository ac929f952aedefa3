package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FetchDueSourceTasks selects (keyword, source) pairs whose next poll is
// due, across keywords and profiles that are both still active, limited
// to sources the worker actually enabled for this run.
func (s *Store) FetchDueSourceTasks(ctx context.Context, conn Executor, batchSize int, enabledSources []string) ([]SourceTask, error) {
	if len(enabledSources) == 0 {
		return nil, nil
	}

	rows, err := conn.Query(ctx, `
		select
		  ks.keyword_id,
		  k.user_id,
		  k.brand_id,
		  k.query,
		  ks.source::text as source,
		  st.last_checked_at
		from public.keyword_sources ks
		join public.keywords k on k.id = ks.keyword_id
		join public.profiles p on p.id = k.user_id
		left join public.keyword_source_state st
		  on st.keyword_id = ks.keyword_id
		 and st.source = ks.source
		where ks.enabled = true
		  and k.is_active = true
		  and p.is_active = true
		  and ks.source::text = any($1)
		  and coalesce(st.next_poll_at, now()) <= now()
		order by coalesce(st.next_poll_at, now()) asc
		limit $2
	`, enabledSources, batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetching due source tasks: %w", err)
	}
	defer rows.Close()

	var tasks []SourceTask
	for rows.Next() {
		var (
			t       SourceTask
			brandID *uuid.UUID
			last    *time.Time
		)
		if err := rows.Scan(&t.KeywordID, &t.UserID, &brandID, &t.Query, &t.Source, &last); err != nil {
			return nil, fmt.Errorf("scanning due source task: %w", err)
		}
		t.BrandID = brandID
		t.LastCheckedAt = last
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating due source tasks: %w", err)
	}

	return tasks, nil
}

// MarkSourceTaskSuccess records a successful poll and schedules the next
// one poll_interval_minutes from checkedAt.
func (s *Store) MarkSourceTaskSuccess(ctx context.Context, conn Executor, keywordID uuid.UUID, source string, checkedAt time.Time, pollIntervalMinutes int) error {
	if pollIntervalMinutes < 1 {
		pollIntervalMinutes = 1
	}
	nextPoll := checkedAt.Add(time.Duration(pollIntervalMinutes) * time.Minute)

	_, err := conn.Exec(ctx, `
		insert into public.keyword_source_state
		  (keyword_id, source, last_checked_at, next_poll_at, last_error, updated_at)
		values ($1, $2, $3, $4, null, now())
		on conflict (keyword_id, source) do update
		set last_checked_at = excluded.last_checked_at,
		    next_poll_at = excluded.next_poll_at,
		    last_error = null,
		    updated_at = now()
	`, keywordID, source, checkedAt, nextPoll)
	if err != nil {
		return fmt.Errorf("marking source task success: %w", err)
	}
	return nil
}

// MarkSourceTaskError records a failed or deferred poll and backs off the
// next attempt by backoffMinutes (floored at 1 minute). The error message
// is truncated to 800 characters, matching the column's intended size.
func (s *Store) MarkSourceTaskError(ctx context.Context, conn Executor, keywordID uuid.UUID, source string, errMessage string, backoffMinutes int) error {
	if backoffMinutes < 1 {
		backoffMinutes = 1
	}
	nextPoll := time.Now().UTC().Add(time.Duration(backoffMinutes) * time.Minute)

	_, err := conn.Exec(ctx, `
		insert into public.keyword_source_state
		  (keyword_id, source, next_poll_at, last_error, updated_at)
		values ($1, $2, $3, $4, now())
		on conflict (keyword_id, source) do update
		set next_poll_at = excluded.next_poll_at,
		    last_error = excluded.last_error,
		    updated_at = now()
	`, keywordID, source, nextPoll, truncate(errMessage, 800))
	if err != nil {
		return fmt.Errorf("marking source task error: %w", err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
