package memory

import (
	"context"
	"sync"

	"equity-ledger/internal/storage"
)

// Versions is an in-memory implementation of storage.VersionStore.
// The ledger stores of one company share a single Versions.
type Versions struct {
	mu   sync.RWMutex
	data map[string]uint64 // keyed by company_id
}

// NewVersions creates a new version counter.
func NewVersions() *Versions {
	return &Versions{data: make(map[string]uint64)}
}

// Version returns the current ledger version of a company.
func (v *Versions) Version(_ context.Context, companyID string) (uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.data[companyID], nil
}

func (v *Versions) bump(companyID string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data[companyID]++
	return v.data[companyID]
}

var _ storage.VersionStore = (*Versions)(nil)
