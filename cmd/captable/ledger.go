package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"equity-ledger/internal/config"
	"equity-ledger/internal/ledger"
	"equity-ledger/internal/ledgerfile"
	"equity-ledger/internal/storage/backend"
	chstore "equity-ledger/internal/storage/clickhouse"
)

// loadedLedger is a ledger file applied to in-memory services.
type loadedLedger struct {
	company string
	caps    *ledger.CapTable
	vsop    *ledger.Vsop
}

// loadConfig reads --config when set, otherwise the .env file and environment.
// CLI output goes to the terminal, so logs are text at warn unless configured.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.ReadFromFile(path)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	cfg.LogFormat = "text"
	if cfg.LogLevel == config.Default().LogLevel {
		cfg.LogLevel = "warn"
	}
	return cfg, nil
}

// openLedger applies the --ledger file to fresh in-memory stores. When history
// is set, exports go to ClickHouse instead of memory.
func openLedger(cmd *cobra.Command, history *chstore.Conn) (*loadedLedger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("ledger")
	f, err := ledgerfile.Load(path)
	if err != nil {
		return nil, err
	}

	stores := backend.Memory()
	if history != nil {
		stores.History = chstore.NewOwnershipHistoryStore(history)
	}

	opts := ledger.Options{
		IDs:                 ledger.NewSeededUUIDGenerator(f.Company),
		Logger:              cfg.NewLogger(cmd.ErrOrStderr()),
		StrictDates:         cfg.StrictDates,
		EnforcePoolCapacity: cfg.EnforcePoolCapacity,
	}
	l := &loadedLedger{
		company: f.Company,
		caps:    ledger.NewCapTable(stores, opts),
		vsop:    ledger.NewVsop(stores, opts),
	}
	if _, err := f.Apply(cmd.Context(), l.caps, l.vsop); err != nil {
		return nil, fmt.Errorf("applying %s: %w", path, err)
	}
	return l, nil
}
