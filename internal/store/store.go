// Package store is the worker's data-access layer: the singleton
// advisory lock, run bookkeeping, due-task selection, mention/match/alert
// persistence, and the per-source daily request counters. Every method
// takes an explicit Executor (a *pgxpool.Pool, *pgxpool.Conn or pgx.Tx)
// so callers control transaction boundaries; the store itself never
// starts or commits one.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor is satisfied by both *pgxpool.Pool and pgx.Tx, letting store
// methods run inside or outside an explicit transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store wraps a pgxpool.Pool with the worker's query set.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for callers that need to manage their
// own connection (e.g. the pipeline acquiring the dedicated connection
// that holds the run's advisory lock).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
