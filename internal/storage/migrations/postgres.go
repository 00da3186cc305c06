package migrations

import (
	"context"
	"fmt"

	"equity-ledger/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded Postgres files in lexical order.
// Every statement uses IF NOT EXISTS, so running twice is harmless.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, f := range files {
		if _, err := pool.Exec(ctx, f.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
	}
	return nil
}
