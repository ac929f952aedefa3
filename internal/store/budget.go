package store

import (
	"context"
	"fmt"
)

// FetchTodaySourceRequests returns each source's outbound request count
// for the current UTC day, for the admission-control check against each
// source's daily budget. Sources with no rows yet are simply absent from
// the map (treated as zero by the caller).
func (s *Store) FetchTodaySourceRequests(ctx context.Context, conn Executor, sourceKeys []string) (map[string]int, error) {
	counts := make(map[string]int, len(sourceKeys))
	if len(sourceKeys) == 0 {
		return counts, nil
	}

	rows, err := conn.Query(ctx, `
		select source, request_count
		from public.source_request_counters
		where source = any($1)
		  and request_date = (now() at time zone 'utc')::date
	`, sourceKeys)
	if err != nil {
		return nil, fmt.Errorf("fetching today's source requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scanning source request count: %w", err)
		}
		counts[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source request counts: %w", err)
	}

	return counts, nil
}

// IncrementSourceRequestCount charges one request against a source's
// daily counter, rolling it over to 1 if the stored row is from a
// previous UTC day. Called once per adapter.Search invocation, win or
// lose, since the budget is per request rather than per result.
func (s *Store) IncrementSourceRequestCount(ctx context.Context, conn Executor, source string) error {
	_, err := conn.Exec(ctx, `
		insert into public.source_request_counters (source, request_date, request_count)
		values ($1, (now() at time zone 'utc')::date, 1)
		on conflict (source) do update
		set request_count = case
		      when public.source_request_counters.request_date = excluded.request_date
		      then public.source_request_counters.request_count + 1
		      else 1
		    end,
		    request_date = excluded.request_date
	`, source)
	if err != nil {
		return fmt.Errorf("incrementing source request count: %w", err)
	}
	return nil
}
