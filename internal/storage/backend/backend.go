// Package backend opens the configured storage backends for the ledger services.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"equity-ledger/internal/ledger"
	chstore "equity-ledger/internal/storage/clickhouse"
	"equity-ledger/internal/storage/memory"
	"equity-ledger/internal/storage/migrations"
	pgstore "equity-ledger/internal/storage/postgres"
)

// Options selects and configures the backends.
type Options struct {
	UseMemory     bool
	PostgresDSN   string
	ClickhouseDSN string // optional; without it exports are disabled
	Logger        *slog.Logger
}

// Open returns the stores for opts and a cleanup function closing any
// connections. Database schemas are migrated before use.
func Open(ctx context.Context, opts Options) (ledger.Stores, func(), error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.UseMemory {
		logger.Info("using in-memory storage")
		return Memory(), func() {}, nil
	}
	if opts.PostgresDSN == "" {
		return ledger.Stores{}, nil, fmt.Errorf("postgres DSN is required without in-memory storage")
	}

	pool, err := pgstore.NewPool(ctx, opts.PostgresDSN)
	if err != nil {
		return ledger.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return ledger.Stores{}, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	stores := ledger.Stores{
		ShareClasses: pgstore.NewShareClassStore(pool),
		Stakeholders: pgstore.NewStakeholderStore(pool),
		Events:       pgstore.NewEquityEventStore(pool),
		Versions:     pgstore.NewVersionStore(pool),
		Vsop:         pgstore.NewVsopStore(pool),
	}

	var chConn *chstore.Conn
	if opts.ClickhouseDSN != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, opts.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return ledger.Stores{}, nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		stores.History = chstore.NewOwnershipHistoryStore(chConn)
	} else {
		logger.Warn("no clickhouse DSN configured, ownership history export disabled")
	}

	cleanup := func() {
		if chConn != nil {
			chConn.Close()
		}
		pool.Close()
	}
	return stores, cleanup, nil
}

// Memory returns a fresh set of in-memory stores sharing one version counter.
func Memory() ledger.Stores {
	versions := memory.NewVersions()
	return ledger.Stores{
		ShareClasses: memory.NewShareClassStore(versions),
		Stakeholders: memory.NewStakeholderStore(versions),
		Events:       memory.NewEquityEventStore(versions),
		Versions:     versions,
		Vsop:         memory.NewVsopStore(),
		History:      memory.NewOwnershipHistoryStore(),
	}
}
