package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the subset of pgxpool.Pool the repositories need. pgxmock's
// pool implements it too, which is what the repo tests run against.
type Database interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ErrConcurrentTransition is returned when a compare-and-swap status update
// finds the row no longer in the expected prior state. Callers treat it as
// "someone else finished first", not as a failure.
var ErrConcurrentTransition = errors.New("domain graph: concurrent transition conflict")

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
