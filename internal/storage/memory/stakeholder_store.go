package memory

import (
	"context"
	"sort"
	"sync"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// StakeholderStore is an in-memory implementation of storage.StakeholderStore.
type StakeholderStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Stakeholder // keyed by id
	versions *Versions
}

// NewStakeholderStore creates a new in-memory stakeholder store.
func NewStakeholderStore(versions *Versions) *StakeholderStore {
	return &StakeholderStore{
		data:     make(map[string]*domain.Stakeholder),
		versions: versions,
	}
}

// Insert adds a new stakeholder. Returns ErrDuplicateKey if id exists.
func (s *StakeholderStore) Insert(_ context.Context, sh *domain.Stakeholder) error {
	if sh == nil || sh.ID == "" || sh.CompanyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sh.ID]; exists {
		return storage.ErrDuplicateKey
	}

	stakeholderCopy := *sh
	s.data[sh.ID] = &stakeholderCopy
	s.versions.bump(sh.CompanyID)
	return nil
}

// GetByID retrieves a stakeholder by its ID. Returns ErrNotFound if not exists.
func (s *StakeholderStore) GetByID(_ context.Context, id string) (*domain.Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	stakeholderCopy := *sh
	return &stakeholderCopy, nil
}

// ListByCompany retrieves all stakeholders of a company, ordered by name ASC.
func (s *StakeholderStore) ListByCompany(_ context.Context, companyID string) ([]*domain.Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Stakeholder
	for _, sh := range s.data {
		if sh.CompanyID == companyID {
			stakeholderCopy := *sh
			result = append(result, &stakeholderCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Update replaces a stakeholder. The company of an existing stakeholder cannot change.
func (s *StakeholderStore) Update(_ context.Context, sh *domain.Stakeholder) error {
	if sh == nil || sh.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[sh.ID]
	if !exists {
		return storage.ErrNotFound
	}

	stakeholderCopy := *sh
	stakeholderCopy.CompanyID = existing.CompanyID
	stakeholderCopy.CreatedAt = existing.CreatedAt
	s.data[sh.ID] = &stakeholderCopy
	s.versions.bump(existing.CompanyID)
	return nil
}

// Delete removes a stakeholder. Returns ErrNotFound if not exists.
func (s *StakeholderStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}

	delete(s.data, id)
	s.versions.bump(existing.CompanyID)
	return nil
}

var _ storage.StakeholderStore = (*StakeholderStore)(nil)
