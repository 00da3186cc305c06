package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/storage"
	"equity-ledger/internal/vesting"
)

// PoolInput carries the option pool fields. On update, nil fields keep their
// stored values and an empty ShareClassID detaches the pool from its class.
// A new pool requires TotalShares; a nil or blank Name selects the default name.
type PoolInput struct {
	Name         *string `json:"name"`
	TotalShares  *int64  `json:"total_shares"`
	ShareClassID *string `json:"share_class_id"`
	Notes        *string `json:"notes"`
}

// GrantInput carries a new grant. GrantDate is ISO-8601 text; empty means undated.
// Nil cliff and vesting periods select the defaults. Grants always start active.
type GrantInput struct {
	StakeholderID string           `json:"stakeholder_id"`
	SharesGranted int64            `json:"shares_granted"`
	StrikePrice   *decimal.Decimal `json:"strike_price"`
	GrantDate     string           `json:"grant_date"`
	CliffMonths   *int             `json:"cliff_months"`
	VestingMonths *int             `json:"vesting_months"`
	Notes         *string          `json:"notes"`
}

// GrantUpdate is a partial grant update; nil fields are left unchanged.
// An empty GrantDate clears the date.
type GrantUpdate struct {
	SharesGranted *int64              `json:"shares_granted"`
	StrikePrice   *decimal.Decimal    `json:"strike_price"`
	GrantDate     *string             `json:"grant_date"`
	CliffMonths   *int                `json:"cliff_months"`
	VestingMonths *int                `json:"vesting_months"`
	Status        *domain.GrantStatus `json:"status"`
	Notes         *string             `json:"notes"`
}

// Vsop manages the option pool and grants of companies.
type Vsop struct {
	base
}

// NewVsop creates an option pool service.
func NewVsop(stores Stores, opts Options) *Vsop {
	return &Vsop{base: newBase(stores, opts, "vsop")}
}

// UpsertPool creates the company pool or merges the set fields of in into
// the stored one.
func (s *Vsop) UpsertPool(ctx context.Context, companyID string, in PoolInput) (*domain.VsopPool, error) {
	now := s.now()
	p, err := s.stores.Vsop.GetPool(ctx, companyID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if in.TotalShares == nil {
			return nil, s.failed(EntityVsopPool, domain.OpCreate, &domain.ValidationError{Field: "total_shares", Reason: "required"})
		}
		p = &domain.VsopPool{
			ID:        s.opts.IDs.New(),
			CompanyID: companyID,
			Name:      domain.DefaultPoolName,
			CreatedAt: now,
		}
	case err != nil:
		return nil, s.failed(EntityVsopPool, domain.OpUpdate, fmt.Errorf("get pool: %w", err))
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
		if p.Name == "" {
			p.Name = domain.DefaultPoolName
		}
	}
	if in.TotalShares != nil {
		p.TotalShares = *in.TotalShares
	}
	if in.ShareClassID != nil {
		p.ShareClassID = in.ShareClassID
		if *in.ShareClassID == "" {
			p.ShareClassID = nil
		}
	}
	if in.Notes != nil {
		p.Notes = in.Notes
	}
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return nil, s.failed(EntityVsopPool, domain.OpUpdate, err)
	}
	if in.ShareClassID != nil && p.ShareClassID != nil {
		c, err := s.stores.ShareClasses.GetByID(ctx, *p.ShareClassID)
		if err != nil {
			return nil, s.failed(EntityVsopPool, domain.OpUpdate, fmt.Errorf("share_class_id %s: %w", *p.ShareClassID, err))
		}
		if c.CompanyID != companyID {
			return nil, s.failed(EntityVsopPool, domain.OpUpdate, fmt.Errorf("share_class_id %s: %w", *p.ShareClassID, ErrCrossCompany))
		}
	}
	if err := s.stores.Vsop.UpsertPool(ctx, p); err != nil {
		return nil, s.failed(EntityVsopPool, domain.OpUpdate, fmt.Errorf("upsert pool: %w", err))
	}

	s.notify(companyID, EntityVsopPool, domain.OpUpdate, p.ID, 0)
	return p, nil
}

// GetPool returns the company pool, storage.ErrNotFound if it has none.
func (s *Vsop) GetPool(ctx context.Context, companyID string) (*domain.VsopPool, error) {
	return s.stores.Vsop.GetPool(ctx, companyID)
}

// DeletePool removes the company pool and all of its grants.
func (s *Vsop) DeletePool(ctx context.Context, companyID string) error {
	pool, err := s.stores.Vsop.GetPool(ctx, companyID)
	if err != nil {
		return s.failed(EntityVsopPool, domain.OpDelete, err)
	}
	if err := s.stores.Vsop.DeletePool(ctx, companyID); err != nil {
		return s.failed(EntityVsopPool, domain.OpDelete, fmt.Errorf("delete pool: %w", err))
	}

	s.notify(companyID, EntityVsopPool, domain.OpDelete, pool.ID, 0)
	return nil
}

// CreateGrant adds a grant to the company pool. Returns ErrNoPool when the
// company has no pool. A grant that over-allocates the pool is rejected with
// ErrPoolCapacityExceeded when capacity is enforced and logged otherwise.
// The grant is returned with its vesting state at the service clock.
func (s *Vsop) CreateGrant(ctx context.Context, companyID string, in GrantInput) (*domain.GrantView, error) {
	pool, err := s.stores.Vsop.GetPool(ctx, companyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, s.failed(EntityVsopGrant, domain.OpCreate, ErrNoPool)
	}
	if err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpCreate, fmt.Errorf("get pool: %w", err))
	}

	parsed, err := s.parseDate(companyID, "grant_date", in.GrantDate)
	if err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpCreate, err)
	}

	g := &domain.VsopGrant{
		ID:            s.opts.IDs.New(),
		PoolID:        pool.ID,
		StakeholderID: in.StakeholderID,
		SharesGranted: in.SharesGranted,
		StrikePrice:   in.StrikePrice,
		GrantDate:     parsed.Time,
		CliffMonths:   domain.DefaultCliffMonths,
		VestingMonths: domain.DefaultVestingMonths,
		Status:        domain.GrantActive,
		Notes:         in.Notes,
		CreatedAt:     s.now(),
	}
	if in.CliffMonths != nil {
		g.CliffMonths = *in.CliffMonths
	}
	if in.VestingMonths != nil {
		g.VestingMonths = *in.VestingMonths
	}
	if err := g.Validate(); err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpCreate, err)
	}
	if err := s.checkHolder(ctx, companyID, g.StakeholderID); err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpCreate, err)
	}
	if err := s.checkCapacity(ctx, pool, g, ""); err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpCreate, err)
	}
	if err := s.stores.Vsop.InsertGrant(ctx, g); err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpCreate, fmt.Errorf("insert grant: %w", err))
	}

	s.notify(companyID, EntityVsopGrant, domain.OpCreate, g.ID, 0)
	return s.view(g), nil
}

func (s *Vsop) checkHolder(ctx context.Context, companyID, stakeholderID string) error {
	sh, err := s.stores.Stakeholders.GetByID(ctx, stakeholderID)
	if err != nil {
		return fmt.Errorf("stakeholder_id %s: %w", stakeholderID, err)
	}
	if sh.CompanyID != companyID {
		return fmt.Errorf("stakeholder_id %s: %w", stakeholderID, ErrCrossCompany)
	}
	return nil
}

// checkCapacity tests g against the pool, ignoring the stored grant with id
// replacing. Terminated grants never consume capacity.
func (s *Vsop) checkCapacity(ctx context.Context, pool *domain.VsopPool, g *domain.VsopGrant, replacing string) error {
	if g.Status == domain.GrantTerminated {
		return nil
	}

	stored, err := s.stores.Vsop.ListGrants(ctx, pool.ID)
	if err != nil {
		return fmt.Errorf("list grants: %w", err)
	}
	others := make([]domain.VsopGrant, 0, len(stored))
	for _, o := range stored {
		if o.ID != replacing {
			others = append(others, *o)
		}
	}

	remaining, ok := vesting.CheckCapacity(pool, others, g.SharesGranted)
	if ok {
		return nil
	}
	if s.opts.EnforcePoolCapacity {
		return fmt.Errorf("%w: %d shares over pool of %d", ErrPoolCapacityExceeded, -remaining, pool.TotalShares)
	}
	s.metrics.RecordOverAllocation()
	s.logger.Warn("pool over-allocated",
		"company_id", pool.CompanyID, "pool_id", pool.ID, "over_by", -remaining)
	return nil
}

// GetGrant returns a grant of the company pool with its vesting state at the service clock.
func (s *Vsop) GetGrant(ctx context.Context, companyID, id string) (*domain.GrantView, error) {
	g, _, err := s.companyGrant(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return s.view(g), nil
}

func (s *Vsop) view(g *domain.VsopGrant) *domain.GrantView {
	return &domain.GrantView{VsopGrant: *g, Vesting: vesting.ComputeVesting(g, s.now())}
}

// companyGrant loads a grant and checks it belongs to the company pool.
func (s *Vsop) companyGrant(ctx context.Context, companyID, id string) (*domain.VsopGrant, *domain.VsopPool, error) {
	pool, err := s.stores.Vsop.GetPool(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.stores.Vsop.GetGrant(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if g.PoolID != pool.ID {
		return nil, nil, storage.ErrNotFound
	}
	return g, pool, nil
}

// UpdateGrant applies the non-nil fields of in. Status changes only when set
// explicitly; elapsed time never changes it.
func (s *Vsop) UpdateGrant(ctx context.Context, companyID, id string, in GrantUpdate) (*domain.GrantView, error) {
	g, pool, err := s.companyGrant(ctx, companyID, id)
	if err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpUpdate, err)
	}

	if in.SharesGranted != nil {
		g.SharesGranted = *in.SharesGranted
	}
	if in.StrikePrice != nil {
		g.StrikePrice = in.StrikePrice
	}
	if in.GrantDate != nil {
		parsed, err := s.parseDate(companyID, "grant_date", *in.GrantDate)
		if err != nil {
			return nil, s.failed(EntityVsopGrant, domain.OpUpdate, err)
		}
		g.GrantDate = parsed.Time
	}
	if in.CliffMonths != nil {
		g.CliffMonths = *in.CliffMonths
	}
	if in.VestingMonths != nil {
		g.VestingMonths = *in.VestingMonths
	}
	if in.Status != nil {
		g.Status = *in.Status
	}
	if in.Notes != nil {
		g.Notes = in.Notes
	}

	if err := g.Validate(); err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpUpdate, err)
	}
	if in.SharesGranted != nil || in.Status != nil {
		if err := s.checkCapacity(ctx, pool, g, g.ID); err != nil {
			return nil, s.failed(EntityVsopGrant, domain.OpUpdate, err)
		}
	}
	if err := s.stores.Vsop.UpdateGrant(ctx, g); err != nil {
		return nil, s.failed(EntityVsopGrant, domain.OpUpdate, fmt.Errorf("update grant: %w", err))
	}

	s.notify(companyID, EntityVsopGrant, domain.OpUpdate, id, 0)
	return s.view(g), nil
}

// DeleteGrant removes a grant of the company pool.
func (s *Vsop) DeleteGrant(ctx context.Context, companyID, id string) error {
	if _, _, err := s.companyGrant(ctx, companyID, id); err != nil {
		return s.failed(EntityVsopGrant, domain.OpDelete, err)
	}
	if err := s.stores.Vsop.DeleteGrant(ctx, id); err != nil {
		return s.failed(EntityVsopGrant, domain.OpDelete, fmt.Errorf("delete grant: %w", err))
	}

	s.notify(companyID, EntityVsopGrant, domain.OpDelete, id, 0)
	return nil
}

// GetSummary aggregates the company pool at the service clock. A company
// without a pool yields a summary with a nil pool and zero totals.
func (s *Vsop) GetSummary(ctx context.Context, companyID string) (domain.VsopSummary, error) {
	return s.SummaryAt(ctx, companyID, s.now())
}

// SummaryAt aggregates the company pool as of the given time.
func (s *Vsop) SummaryAt(ctx context.Context, companyID string, asOf time.Time) (domain.VsopSummary, error) {
	pool, err := s.stores.Vsop.GetPool(ctx, companyID)
	if errors.Is(err, storage.ErrNotFound) {
		return vesting.Summarize(nil, nil, asOf), nil
	}
	if err != nil {
		return domain.VsopSummary{}, fmt.Errorf("get pool: %w", err)
	}

	stored, err := s.stores.Vsop.ListGrants(ctx, pool.ID)
	if err != nil {
		return domain.VsopSummary{}, fmt.Errorf("list grants: %w", err)
	}
	holders, err := s.stores.Stakeholders.ListByCompany(ctx, companyID)
	if err != nil {
		return domain.VsopSummary{}, fmt.Errorf("list stakeholders: %w", err)
	}
	holderByID := make(map[string]*domain.Stakeholder, len(holders))
	for _, h := range holders {
		holderByID[h.ID] = h
	}

	grants := make([]domain.VsopGrant, 0, len(stored))
	for _, g := range stored {
		grant := *g
		grant.Stakeholder = holderByID[g.StakeholderID]
		grants = append(grants, grant)
	}

	summary := vesting.Summarize(pool, grants, asOf)
	if summary.TotalAvailable < 0 {
		s.logger.Debug("summary of over-allocated pool",
			"company_id", companyID, "available", summary.TotalAvailable)
	}
	return summary, nil
}
