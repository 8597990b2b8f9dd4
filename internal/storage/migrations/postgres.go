package migrations

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Every statement is idempotent, so the schema can be re-applied on each start.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger zerolog.Logger) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		logger.Info().Str("migration", m.name).Msg("applied postgres migration")
	}

	return nil
}
