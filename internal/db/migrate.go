package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// gooseUp is swapped in tests.
var gooseUp = goose.UpContext

// Migrate applies the embedded migrations through a database/sql handle
// borrowed from the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	return migrateDB(ctx, sqlDB)
}

func migrateDB(ctx context.Context, sqlDB *sql.DB) error {
	goose.SetBaseFS(Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "set goose dialect").Wrap(err)
	}

	if err := gooseUp(ctx, sqlDB, "migrations"); err != nil {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}

	return nil
}
