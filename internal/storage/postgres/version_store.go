package postgres

import (
	"context"
	"fmt"

	"equity-ledger/internal/storage"
)

// VersionStore implements storage.VersionStore using PostgreSQL.
type VersionStore struct {
	pool *Pool
}

// NewVersionStore creates a new VersionStore.
func NewVersionStore(pool *Pool) *VersionStore {
	return &VersionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VersionStore = (*VersionStore)(nil)

// Version returns the current ledger version, 0 for a company with no writes.
func (s *VersionStore) Version(ctx context.Context, companyID string) (uint64, error) {
	query := `SELECT version FROM ledger_versions WHERE company_id = $1`

	var v int64
	err := s.pool.QueryRow(ctx, query, companyID).Scan(&v)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get ledger version: %w", err)
	}
	return uint64(v), nil
}
