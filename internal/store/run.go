package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TryAdvisoryLock attempts the cluster-wide session advisory lock that
// makes a run a singleton. It must be called on a connection that stays
// open for the lifetime of the run; a pooled connection released back to
// the pool would silently drop the lock.
func (s *Store) TryAdvisoryLock(ctx context.Context, conn Executor, lockKey int64) (bool, error) {
	var locked bool
	err := conn.QueryRow(ctx, `select pg_try_advisory_lock($1) as locked`, lockKey).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("acquiring advisory lock: %w", err)
	}
	return locked, nil
}

// CreateWorkerRun inserts a new worker_runs row in the 'running' state
// and returns its id.
func (s *Store) CreateWorkerRun(ctx context.Context, conn Executor) (uuid.UUID, error) {
	var id uuid.UUID
	err := conn.QueryRow(ctx, `
		insert into public.worker_runs (status)
		values ('running')
		returning id
	`).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating worker run: %w", err)
	}
	return id, nil
}

// FinishWorkerRun records the terminal status, accumulated stats, and
// optional error message for a run.
func (s *Store) FinishWorkerRun(ctx context.Context, conn Executor, runID uuid.UUID, status string, stats map[string]any, runErr error) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding run stats: %w", err)
	}

	var errText *string
	if runErr != nil {
		msg := runErr.Error()
		errText = &msg
	}

	_, err = conn.Exec(ctx, `
		update public.worker_runs
		set status = $1,
		    stats = $2,
		    error = $3,
		    finished_at = now()
		where id = $4
	`, status, statsJSON, errText, runID)
	if err != nil {
		return fmt.Errorf("finishing worker run: %w", err)
	}
	return nil
}
