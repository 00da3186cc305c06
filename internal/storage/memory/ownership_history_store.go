package memory

import (
	"context"
	"sort"
	"sync"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// exportKey identifies one export of a company ledger.
type exportKey struct {
	companyID   string
	fingerprint string
}

// OwnershipHistoryStore is an in-memory implementation of storage.OwnershipHistoryStore.
type OwnershipHistoryStore struct {
	mu      sync.RWMutex
	exports map[exportKey][]*domain.OwnershipPoint
}

// NewOwnershipHistoryStore creates a new in-memory ownership history store.
func NewOwnershipHistoryStore() *OwnershipHistoryStore {
	return &OwnershipHistoryStore{
		exports: make(map[exportKey][]*domain.OwnershipPoint),
	}
}

// InsertBulk adds the points of one or more exports atomically.
// Fails the entire batch if any (company_id, fingerprint) was already exported.
func (s *OwnershipHistoryStore) InsertBulk(_ context.Context, points []*domain.OwnershipPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[exportKey][]*domain.OwnershipPoint)
	for _, p := range points {
		if p == nil || p.CompanyID == "" || p.Fingerprint == "" {
			return storage.ErrInvalidInput
		}
		key := exportKey{companyID: p.CompanyID, fingerprint: p.Fingerprint}
		if _, exists := s.exports[key]; exists {
			return storage.ErrDuplicateKey
		}
		pointCopy := *p
		batch[key] = append(batch[key], &pointCopy)
	}

	for key, pts := range batch {
		s.exports[key] = pts
	}
	return nil
}

// GetByCompany retrieves all points of a company, ordered by exported_at, event_index, ownership_pct DESC.
func (s *OwnershipHistoryStore) GetByCompany(_ context.Context, companyID string) ([]*domain.OwnershipPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OwnershipPoint
	for key, pts := range s.exports {
		if key.companyID == companyID {
			result = appendCopies(result, pts)
		}
	}

	sortPoints(result)
	return result, nil
}

// GetByFingerprint retrieves the points of a single export.
func (s *OwnershipHistoryStore) GetByFingerprint(_ context.Context, companyID, fingerprint string) ([]*domain.OwnershipPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := appendCopies(nil, s.exports[exportKey{companyID: companyID, fingerprint: fingerprint}])
	sortPoints(result)
	return result, nil
}

func appendCopies(dst, src []*domain.OwnershipPoint) []*domain.OwnershipPoint {
	for _, p := range src {
		pointCopy := *p
		dst = append(dst, &pointCopy)
	}
	return dst
}

func sortPoints(points []*domain.OwnershipPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if !a.ExportedAt.Equal(b.ExportedAt) {
			return a.ExportedAt.Before(b.ExportedAt)
		}
		if a.Fingerprint != b.Fingerprint {
			return a.Fingerprint < b.Fingerprint
		}
		if a.EventIndex != b.EventIndex {
			return a.EventIndex < b.EventIndex
		}
		if a.OwnershipPct != b.OwnershipPct {
			return a.OwnershipPct > b.OwnershipPct
		}
		return a.StakeholderID < b.StakeholderID
	})
}

var _ storage.OwnershipHistoryStore = (*OwnershipHistoryStore)(nil)
