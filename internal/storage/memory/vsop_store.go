package memory

import (
	"context"
	"sort"
	"sync"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// VsopStore is an in-memory implementation of storage.VsopStore.
type VsopStore struct {
	mu     sync.RWMutex
	pools  map[string]*domain.VsopPool  // keyed by company_id
	grants map[string]*domain.VsopGrant // keyed by id
}

// NewVsopStore creates a new in-memory pool and grant store.
func NewVsopStore() *VsopStore {
	return &VsopStore{
		pools:  make(map[string]*domain.VsopPool),
		grants: make(map[string]*domain.VsopGrant),
	}
}

// UpsertPool creates the company pool or updates it in place.
// The stored pool keeps its original id and created_at.
func (s *VsopStore) UpsertPool(_ context.Context, p *domain.VsopPool) error {
	if p == nil || p.CompanyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	poolCopy := *p
	if existing, exists := s.pools[p.CompanyID]; exists {
		poolCopy.ID = existing.ID
		poolCopy.CreatedAt = existing.CreatedAt
	} else if p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.pools[p.CompanyID] = &poolCopy
	*p = poolCopy
	return nil
}

// GetPool retrieves the company pool. Returns ErrNotFound if the company has none.
func (s *VsopStore) GetPool(_ context.Context, companyID string) (*domain.VsopPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.pools[companyID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	poolCopy := *p
	return &poolCopy, nil
}

// DeletePool removes the company pool and all its grants.
func (s *VsopStore) DeletePool(_ context.Context, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.pools[companyID]
	if !exists {
		return storage.ErrNotFound
	}

	for id, g := range s.grants {
		if g.PoolID == p.ID {
			delete(s.grants, id)
		}
	}
	delete(s.pools, companyID)
	return nil
}

// InsertGrant adds a grant. Returns ErrNotFound if the pool does not exist.
func (s *VsopStore) InsertGrant(_ context.Context, g *domain.VsopGrant) error {
	if g == nil || g.ID == "" || g.PoolID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.poolExists(g.PoolID) {
		return storage.ErrNotFound
	}
	if _, exists := s.grants[g.ID]; exists {
		return storage.ErrDuplicateKey
	}

	grantCopy := *g
	grantCopy.Stakeholder = nil
	s.grants[g.ID] = &grantCopy
	return nil
}

// GetGrant retrieves a grant by its ID. Returns ErrNotFound if not exists.
func (s *VsopStore) GetGrant(_ context.Context, id string) (*domain.VsopGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, exists := s.grants[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	grantCopy := *g
	return &grantCopy, nil
}

// ListGrants retrieves the grants of a pool, ordered by grant_date ASC (undated last), then created_at.
func (s *VsopStore) ListGrants(_ context.Context, poolID string) ([]*domain.VsopGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VsopGrant
	for _, g := range s.grants {
		if g.PoolID == poolID {
			grantCopy := *g
			result = append(result, &grantCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.GrantDate != nil && b.GrantDate == nil:
			return true
		case a.GrantDate == nil && b.GrantDate != nil:
			return false
		case a.GrantDate != nil && !a.GrantDate.Equal(*b.GrantDate):
			return a.GrantDate.Before(*b.GrantDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return result, nil
}

// ListGrantsByStakeholder retrieves every grant held by a stakeholder.
func (s *VsopStore) ListGrantsByStakeholder(_ context.Context, stakeholderID string) ([]*domain.VsopGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VsopGrant
	for _, g := range s.grants {
		if g.StakeholderID == stakeholderID {
			grantCopy := *g
			result = append(result, &grantCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdateGrant replaces a grant. Returns ErrNotFound if not exists.
func (s *VsopStore) UpdateGrant(_ context.Context, g *domain.VsopGrant) error {
	if g == nil || g.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.grants[g.ID]
	if !exists {
		return storage.ErrNotFound
	}

	grantCopy := *g
	grantCopy.Stakeholder = nil
	grantCopy.PoolID = existing.PoolID
	grantCopy.CreatedAt = existing.CreatedAt
	s.grants[g.ID] = &grantCopy
	return nil
}

// DeleteGrant removes a grant. Returns ErrNotFound if not exists.
func (s *VsopStore) DeleteGrant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.grants, id)
	return nil
}

func (s *VsopStore) poolExists(poolID string) bool {
	for _, p := range s.pools {
		if p.ID == poolID {
			return true
		}
	}
	return false
}

var _ storage.VsopStore = (*VsopStore)(nil)
