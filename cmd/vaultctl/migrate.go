package main

import (
	"context"
	"time"

	"github.com/geocoder89/vaulthub/internal/config"
	"github.com/geocoder89/vaulthub/internal/db"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  `Apply every embedded migration that has not run yet against DATABASE_URL (or the DB_* variables).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.DBURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("no database configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			cmd.Println("Connecting to database...")
			pool, err := db.NewPool(ctx, cfg.DBURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			cmd.Println("Running migrations...")
			if err := db.Migrate(ctx, pool); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}

			cmd.Println("Migrations completed successfully")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall time limit")

	return cmd
}
