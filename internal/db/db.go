package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	connectAttempts = 5
	connectBackoff  = 200 * time.Millisecond
)

// NewPool connects and pings, retrying with exponential backoff while the
// database is still coming up.
func NewPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)

	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse db url").Wrap(err)
	}

	cfg.MaxConns = 5

	var pool *pgxpool.Pool

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(connectBackoff))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		p, err := pgxpool.NewWithConfig(pingCtx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}

		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			slog.Default().WarnContext(ctx, "db_ping_failed", "err", err)
			return retry.RetryableError(err)
		}

		pool = p
		return nil
	})

	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect db").Wrap(err)
	}

	return pool, nil
}
