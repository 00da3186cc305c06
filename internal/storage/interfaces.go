package storage

import (
	"context"

	"equity-ledger/internal/domain"
)

// ShareClassStore provides access to share_classes storage.
type ShareClassStore interface {
	// Insert adds a new share class. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, c *domain.ShareClass) error

	// GetByID retrieves a share class by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.ShareClass, error)

	// ListByCompany retrieves all share classes of a company, ordered by seniority ASC, name ASC.
	ListByCompany(ctx context.Context, companyID string) ([]*domain.ShareClass, error)

	// Update replaces a share class. Returns ErrNotFound if not exists.
	Update(ctx context.Context, c *domain.ShareClass) error

	// Delete removes a share class. Returns ErrNotFound if not exists.
	// Backends with foreign keys return ErrReferenced while an allocation still uses it.
	Delete(ctx context.Context, id string) error
}

// StakeholderStore provides access to stakeholders storage.
type StakeholderStore interface {
	// Insert adds a new stakeholder. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, s *domain.Stakeholder) error

	// GetByID retrieves a stakeholder by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Stakeholder, error)

	// ListByCompany retrieves all stakeholders of a company, ordered by name ASC.
	ListByCompany(ctx context.Context, companyID string) ([]*domain.Stakeholder, error)

	// Update replaces a stakeholder. Returns ErrNotFound if not exists.
	Update(ctx context.Context, s *domain.Stakeholder) error

	// Delete removes a stakeholder. Returns ErrNotFound if not exists.
	// Backends with foreign keys return ErrReferenced while an allocation or grant still uses it.
	Delete(ctx context.Context, id string) error
}

// EquityEventStore provides access to equity_events and their allocations.
// An event and its allocations are written and deleted as one unit.
type EquityEventStore interface {
	// Insert adds an event with its allocations atomically and assigns e.Seq,
	// the next append position in the company ledger. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, e *domain.EquityEvent) error

	// GetByID retrieves an event with its allocations. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.EquityEvent, error)

	// ListByCompany retrieves all events of a company with allocations, ordered by seq ASC.
	ListByCompany(ctx context.Context, companyID string) ([]*domain.EquityEvent, error)

	// Delete removes an event and its allocations. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, id string) error
}

// VersionStore exposes the monotonic ledger version of a company.
// Every write to share classes, stakeholders or equity events of the company
// increments it, so equal versions imply identical projection input.
type VersionStore interface {
	// Version returns the current ledger version, 0 for a company with no writes.
	Version(ctx context.Context, companyID string) (uint64, error)
}

// VsopStore provides access to vsop_pools and vsop_grants.
// A company has at most one pool; deleting it deletes its grants.
type VsopStore interface {
	// UpsertPool creates the company pool or updates it in place. An existing
	// pool keeps its id and created_at, which are written back to p.
	UpsertPool(ctx context.Context, p *domain.VsopPool) error

	// GetPool retrieves the company pool. Returns ErrNotFound if the company has none.
	GetPool(ctx context.Context, companyID string) (*domain.VsopPool, error)

	// DeletePool removes the company pool and all its grants. Returns ErrNotFound if not exists.
	DeletePool(ctx context.Context, companyID string) error

	// InsertGrant adds a grant. Returns ErrNotFound if the pool does not exist,
	// ErrDuplicateKey if id exists.
	InsertGrant(ctx context.Context, g *domain.VsopGrant) error

	// GetGrant retrieves a grant by its ID. Returns ErrNotFound if not exists.
	GetGrant(ctx context.Context, id string) (*domain.VsopGrant, error)

	// ListGrants retrieves the grants of a pool, ordered by grant_date ASC (undated last), then created_at.
	ListGrants(ctx context.Context, poolID string) ([]*domain.VsopGrant, error)

	// ListGrantsByStakeholder retrieves every grant held by a stakeholder.
	ListGrantsByStakeholder(ctx context.Context, stakeholderID string) ([]*domain.VsopGrant, error)

	// UpdateGrant replaces a grant. Returns ErrNotFound if not exists.
	UpdateGrant(ctx context.Context, g *domain.VsopGrant) error

	// DeleteGrant removes a grant. Returns ErrNotFound if not exists.
	DeleteGrant(ctx context.Context, id string) error
}

// OwnershipHistoryStore provides access to exported ownership evolution points.
// Exports are append-only and keyed by ledger fingerprint.
type OwnershipHistoryStore interface {
	// InsertBulk adds the points of one export. Returns ErrDuplicateKey if
	// (company_id, fingerprint) was already exported.
	InsertBulk(ctx context.Context, points []*domain.OwnershipPoint) error

	// GetByCompany retrieves all points of a company, ordered by exported_at, event_index, ownership_pct DESC.
	GetByCompany(ctx context.Context, companyID string) ([]*domain.OwnershipPoint, error)

	// GetByFingerprint retrieves the points of a single export, ordered by event_index, ownership_pct DESC.
	GetByFingerprint(ctx context.Context, companyID, fingerprint string) ([]*domain.OwnershipPoint, error)
}
