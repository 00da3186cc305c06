// Package postgres is the durable ledger backend: share classes,
// stakeholders, equity events with their allocations, the option pool and
// the per-company version counter.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	defaultMaxConns    = 10
	healthCheckPeriod  = 30 * time.Second
	connectPingTimeout = 10 * time.Second
)

// Pool is the shared connection pool behind every store in this package.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and pings the server. Pool limits given in the DSN
// (pool_max_conns and friends) win over the defaults.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if config.MaxConns < defaultMaxConns && !hasPoolOption(config.ConnString(), "pool_max_conns") {
		config.MaxConns = defaultMaxConns
	}
	config.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", config.ConnConfig.Host, err)
	}

	return &Pool{Pool: pool}, nil
}

func hasPoolOption(connString, name string) bool {
	return strings.Contains(connString, name+"=")
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation     = "23505" // unique_violation
	pgErrForeignKeyViolation = "23503" // foreign_key_violation
)

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return err != nil && hasCode(err, pgErrUniqueViolation)
}

// isForeignKeyError checks if error is a foreign key violation, raised both when
// deleting a referenced row and when inserting a row that references a missing one.
func isForeignKeyError(err error) bool {
	return err != nil && hasCode(err, pgErrForeignKeyViolation)
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// bumpLedger increments the company ledger version inside tx and advances the
// event sequence by seqStep. It returns the new version and sequence.
func bumpLedger(ctx context.Context, tx pgx.Tx, companyID string, seqStep int64) (version, seq uint64, err error) {
	query := `
		INSERT INTO ledger_versions (company_id, version, next_seq)
		VALUES ($1, 1, $2)
		ON CONFLICT (company_id) DO UPDATE
		SET version = ledger_versions.version + 1,
		    next_seq = ledger_versions.next_seq + EXCLUDED.next_seq
		RETURNING version, next_seq
	`

	var v, s int64
	if err := tx.QueryRow(ctx, query, companyID, seqStep).Scan(&v, &s); err != nil {
		return 0, 0, fmt.Errorf("bump ledger version: %w", err)
	}
	return uint64(v), uint64(s), nil
}

// decimalArg renders an optional amount for a $n::numeric parameter.
func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// parseDecimal parses a numeric column selected as text.
func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse numeric %q: %w", *s, err)
	}
	return &d, nil
}

// createdAtArg lets the column default apply when the caller left the timestamp unset.
func createdAtArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
