package memory

import (
	"context"
	"sort"
	"sync"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// ShareClassStore is an in-memory implementation of storage.ShareClassStore.
type ShareClassStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.ShareClass // keyed by id
	versions *Versions
}

// NewShareClassStore creates a new in-memory share class store.
func NewShareClassStore(versions *Versions) *ShareClassStore {
	return &ShareClassStore{
		data:     make(map[string]*domain.ShareClass),
		versions: versions,
	}
}

// Insert adds a new share class. Returns ErrDuplicateKey if id exists.
func (s *ShareClassStore) Insert(_ context.Context, c *domain.ShareClass) error {
	if c == nil || c.ID == "" || c.CompanyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.ID]; exists {
		return storage.ErrDuplicateKey
	}

	classCopy := *c
	s.data[c.ID] = &classCopy
	s.versions.bump(c.CompanyID)
	return nil
}

// GetByID retrieves a share class by its ID. Returns ErrNotFound if not exists.
func (s *ShareClassStore) GetByID(_ context.Context, id string) (*domain.ShareClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	classCopy := *c
	return &classCopy, nil
}

// ListByCompany retrieves all share classes of a company, ordered by seniority ASC, name ASC.
func (s *ShareClassStore) ListByCompany(_ context.Context, companyID string) ([]*domain.ShareClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ShareClass
	for _, c := range s.data {
		if c.CompanyID == companyID {
			classCopy := *c
			result = append(result, &classCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Seniority != result[j].Seniority {
			return result[i].Seniority < result[j].Seniority
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Update replaces a share class. The company of an existing class cannot change.
func (s *ShareClassStore) Update(_ context.Context, c *domain.ShareClass) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[c.ID]
	if !exists {
		return storage.ErrNotFound
	}

	classCopy := *c
	classCopy.CompanyID = existing.CompanyID
	classCopy.CreatedAt = existing.CreatedAt
	s.data[c.ID] = &classCopy
	s.versions.bump(existing.CompanyID)
	return nil
}

// Delete removes a share class. Returns ErrNotFound if not exists.
func (s *ShareClassStore) Delete(_ context.Context, id string) error {
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

var _ storage.ShareClassStore = (*ShareClassStore)(nil)
