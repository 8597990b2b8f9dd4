package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gtaa-lab/internal/storage/migrations"
	pgstore "gtaa-lab/internal/storage/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Creates the PostgreSQL schema and, when a ClickHouse DSN is configured, the ClickHouse price table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Storage.UseMemory {
				return errors.New("migrate requires a database, not --use-memory")
			}
			ctx := cmd.Context()

			pool, err := pgstore.NewPool(ctx, a.cfg.Storage.PostgresDSN)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer pool.Close()

			if err := migrations.RunPostgresMigrations(ctx, pool, a.logger); err != nil {
				return err
			}

			if a.cfg.Storage.ClickhouseDSN != "" {
				conn, err := migrations.RunClickhouseMigrations(ctx, a.cfg.Storage.ClickhouseDSN, a.logger)
				if err != nil {
					return err
				}
				_ = conn.Close()
			}

			a.logger.Info().Msg("migrations applied")
			return nil
		},
	}
}
