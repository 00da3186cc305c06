// Package main runs the equity ledger HTTP service:
// - JSON API for share classes, stakeholders, equity events and the VSOP pool
// - projected cap table, KPIs and evolution with fingerprint ETags
// - Prometheus metrics on /metrics and a websocket change feed on /ws
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"equity-ledger/internal/config"
	"equity-ledger/internal/feed"
	"equity-ledger/internal/ledger"
	"equity-ledger/internal/observability"
	"equity-ledger/internal/storage/backend"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	configFile := flag.String("config", "", "Optional TOML config file (replaces environment settings)")

	// Env vars are read first so flags can show them as defaults.
	if err := config.LoadEnvFile(envFileFromArgs(os.Args[1:], ".env")); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (enables ownership history export)")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	strictDates := flag.Bool("strict-dates", cfg.StrictDates, "Reject unparseable dates instead of storing them as absent")
	enforceCapacity := flag.Bool("enforce-pool-capacity", cfg.EnforcePoolCapacity, "Reject grants that over-allocate the pool")
	flag.Parse()

	if *configFile != "" {
		if cfg, err = config.ReadFromFile(*configFile); err != nil {
			return err
		}
	}

	// Explicit flags win over env and config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = *httpAddr
		case "postgres-dsn":
			cfg.PostgresDSN = *postgresDSN
		case "clickhouse-dsn":
			cfg.ClickhouseDSN = *clickhouseDSN
		case "use-memory":
			cfg.UseMemory = *useMemory
		case "log-level":
			cfg.LogLevel = *logLevel
		case "strict-dates":
			cfg.StrictDates = *strictDates
		case "enforce-pool-capacity":
			cfg.EnforcePoolCapacity = *enforceCapacity
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stdout).With("service", "equity-ledger")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := backend.Open(ctx, backend.Options{
		UseMemory:     cfg.UseMemory,
		PostgresDSN:   cfg.PostgresDSN,
		ClickhouseDSN: cfg.ClickhouseDSN,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	hub := feed.NewHub(nil, logger, metrics)
	defer hub.Close()

	opts := ledger.Options{
		Logger:              logger,
		Metrics:             metrics,
		Notifier:            hub,
		StrictDates:         cfg.StrictDates,
		EnforcePoolCapacity: cfg.EnforcePoolCapacity,
		CacheTTL:            cfg.CacheTTL,
	}
	api := &API{
		caps:    ledger.NewCapTable(stores, opts),
		vsop:    ledger.NewVsop(stores, opts),
		feed:    hub,
		metrics: metrics,
		logger:  logger,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr,
			"use_memory", cfg.UseMemory, "strict_dates", cfg.StrictDates,
			"enforce_pool_capacity", cfg.EnforcePoolCapacity)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received signal, initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// envFileFromArgs finds --env-file before flag parsing so the file can feed
// the flag defaults.
func envFileFromArgs(args []string, def string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if name != "env-file" || !strings.HasPrefix(a, "-") {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return def
}
