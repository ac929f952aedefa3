package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// isNoRows reports whether err is the "no rows" sentinel QueryRow returns
// when a RETURNING clause produces nothing, which on conflict ... do
// nothing relies on to signal "already existed" rather than a failure.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
