package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the repos use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBObserver records per-operation latency and error classes.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type noopObserver struct{}

func (noopObserver) ObserveDB(_ string, fn func() error) error { return fn() }

func observerOrNoop(o DBObserver) DBObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
