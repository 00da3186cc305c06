package memory

import (
	"context"
	"sort"
	"sync"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
)

// EquityEventStore is an in-memory implementation of storage.EquityEventStore.
// Events are stored with their allocations; resolved stakeholder and share
// class pointers are dropped, as a relational backend would.
type EquityEventStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.EquityEvent // keyed by id
	nextSeq  map[string]uint64              // keyed by company_id
	versions *Versions
}

// NewEquityEventStore creates a new in-memory equity event store.
func NewEquityEventStore(versions *Versions) *EquityEventStore {
	return &EquityEventStore{
		data:     make(map[string]*domain.EquityEvent),
		nextSeq:  make(map[string]uint64),
		versions: versions,
	}
}

// Insert adds an event with its allocations and assigns e.Seq.
func (s *EquityEventStore) Insert(_ context.Context, e *domain.EquityEvent) error {
	if e == nil || e.ID == "" || e.CompanyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextSeq[e.CompanyID]++
	e.Seq = s.nextSeq[e.CompanyID]

	s.data[e.ID] = detach(e)
	s.versions.bump(e.CompanyID)
	return nil
}

// GetByID retrieves an event with its allocations. Returns ErrNotFound if not exists.
func (s *EquityEventStore) GetByID(_ context.Context, id string) (*domain.EquityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// ListByCompany retrieves all events of a company, ordered by seq ASC.
func (s *EquityEventStore) ListByCompany(_ context.Context, companyID string) ([]*domain.EquityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityEvent
	for _, e := range s.data {
		if e.CompanyID == companyID {
			result = append(result, e.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

// Delete removes an event and its allocations. Returns ErrNotFound if not exists.
func (s *EquityEventStore) Delete(_ context.Context, id string) error {
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

// detach copies an event for storage, keeping only ids on allocations.
func detach(e *domain.EquityEvent) *domain.EquityEvent {
	c := e.Clone()
	for i := range c.Allocations {
		c.Allocations[i].EventID = e.ID
		c.Allocations[i].Stakeholder = nil
		c.Allocations[i].ShareClass = nil
	}
	return c
}

var _ storage.EquityEventStore = (*EquityEventStore)(nil)
