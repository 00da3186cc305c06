package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"equity-ledger/internal/captable"
	"equity-ledger/internal/domain"
	"equity-ledger/internal/idhash"
	"equity-ledger/internal/storage"
)

// Projection view names, used as cache keys and metric labels.
const (
	ViewCapTable  = "captable"
	ViewKPIs      = "kpis"
	ViewEvolution = "evolution"
)

// ShareClassInput carries share class fields. On update, empty Name and nil
// pointers keep the stored value.
type ShareClassInput struct {
	Name                  string  `json:"name"`
	VotesPerShare         *int    `json:"votes_per_share"`
	LiquidationPreference *string `json:"liquidation_preference"`
	Seniority             *int    `json:"seniority"`
}

// StakeholderInput carries stakeholder fields for creation.
type StakeholderInput struct {
	Name          string                 `json:"name"`
	Type          domain.StakeholderType `json:"type"`
	Email         *string                `json:"email"`
	Phone         *string                `json:"phone"`
	EntityName    *string                `json:"entity_name"`
	ContactPerson *string                `json:"contact_person"`
	PartnerEmails *string                `json:"partner_emails"`
	LinkedInURL   *string                `json:"linkedin_url"`
	Notes         *string                `json:"notes"`
}

// StakeholderUpdate is a partial stakeholder update; nil fields are left unchanged.
type StakeholderUpdate struct {
	Name          *string                 `json:"name"`
	Type          *domain.StakeholderType `json:"type"`
	Email         *string                 `json:"email"`
	Phone         *string                 `json:"phone"`
	EntityName    *string                 `json:"entity_name"`
	ContactPerson *string                 `json:"contact_person"`
	PartnerEmails *string                 `json:"partner_emails"`
	LinkedInURL   *string                 `json:"linkedin_url"`
	Notes         *string                 `json:"notes"`
}

// AllocationInput is one allocation of a new event. OwnershipPct is stored as given
// and never used by projections.
type AllocationInput struct {
	StakeholderID  string           `json:"stakeholder_id"`
	ShareClassID   string           `json:"share_class_id"`
	Shares         int64            `json:"shares"`
	AmountInvested *decimal.Decimal `json:"amount_invested"`
	OwnershipPct   float64          `json:"ownership_pct"`
	Notes          *string          `json:"notes"`
}

// EquityEventInput carries a new ledger event. Date is ISO-8601 text; empty means undated.
type EquityEventInput struct {
	Name              string            `json:"name"`
	Type              domain.EventType  `json:"event_type"`
	Date              string            `json:"date"`
	PreMoneyValuation *decimal.Decimal  `json:"pre_money_valuation"`
	AmountRaised      *decimal.Decimal  `json:"amount_raised"`
	PricePerShare     *decimal.Decimal  `json:"price_per_share"`
	TotalSharesAfter  *int64            `json:"total_shares_after"`
	Notes             *string           `json:"notes"`
	Allocations       []AllocationInput `json:"allocations"`
}

// CreateEventResult reports the stored event and how its date was interpreted.
type CreateEventResult struct {
	Event      *domain.EquityEvent `json:"event"`
	DateStatus domain.DateStatus   `json:"date_status"`
	Version    uint64              `json:"version"`
}

// CapTableView is the current snapshot with the share classes of the company
// and the identity of the ledger it was projected from.
type CapTableView struct {
	domain.CapTableSnapshot
	Fingerprint string `json:"fingerprint"`
	Version     uint64 `json:"version"`
}

// KPIView wraps the ledger KPIs with the ledger identity.
type KPIView struct {
	domain.CapTableKPIs
	Fingerprint string `json:"fingerprint"`
	Version     uint64 `json:"version"`
}

// EvolutionView is the chronological snapshot series of a ledger.
type EvolutionView struct {
	Entries     []domain.EvolutionEntry `json:"entries"`
	Fingerprint string                  `json:"fingerprint"`
	Version     uint64                  `json:"version"`
}

// ExportResult describes one ownership history export.
type ExportResult struct {
	CompanyID   string `json:"company_id"`
	Fingerprint string `json:"fingerprint"`
	Points      int    `json:"points"`
}

// CapTable manages share classes, stakeholders and equity events of companies
// and serves the projected cap table views.
//
// Views returned from the Get methods may be shared with the cache and must
// be treated as read-only.
type CapTable struct {
	base
	cache *projectionCache
}

// NewCapTable creates a cap table service.
func NewCapTable(stores Stores, opts Options) *CapTable {
	b := newBase(stores, opts, "captable")
	return &CapTable{
		base:  b,
		cache: newProjectionCache(b.opts.CacheTTL),
	}
}

// ---- share classes ----

// CreateShareClass adds a share class. VotesPerShare defaults to 1 and Seniority to 0.
func (s *CapTable) CreateShareClass(ctx context.Context, companyID string, in ShareClassInput) (*domain.ShareClass, error) {
	c := &domain.ShareClass{
		ID:                    s.opts.IDs.New(),
		CompanyID:             companyID,
		Name:                  strings.TrimSpace(in.Name),
		VotesPerShare:         domain.DefaultVotesPerShare,
		LiquidationPreference: in.LiquidationPreference,
		Seniority:             domain.DefaultSeniority,
		CreatedAt:             s.now(),
	}
	if in.VotesPerShare != nil {
		c.VotesPerShare = *in.VotesPerShare
	}
	if in.Seniority != nil {
		c.Seniority = *in.Seniority
	}

	if err := c.Validate(); err != nil {
		return nil, s.failed(EntityShareClass, domain.OpCreate, err)
	}
	if err := s.stores.ShareClasses.Insert(ctx, c); err != nil {
		return nil, s.failed(EntityShareClass, domain.OpCreate, fmt.Errorf("insert share class: %w", err))
	}

	s.notify(companyID, EntityShareClass, domain.OpCreate, c.ID, 0)
	return c, nil
}

// GetShareClass returns a share class of the company.
func (s *CapTable) GetShareClass(ctx context.Context, companyID, id string) (*domain.ShareClass, error) {
	c, err := s.stores.ShareClasses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.CompanyID != companyID {
		return nil, storage.ErrNotFound
	}
	return c, nil
}

// ListShareClasses returns the company share classes ordered by seniority, then name.
func (s *CapTable) ListShareClasses(ctx context.Context, companyID string) ([]*domain.ShareClass, error) {
	return s.stores.ShareClasses.ListByCompany(ctx, companyID)
}

// UpdateShareClass changes the supplied fields of a share class.
func (s *CapTable) UpdateShareClass(ctx context.Context, companyID, id string, in ShareClassInput) (*domain.ShareClass, error) {
	c, err := s.GetShareClass(ctx, companyID, id)
	if err != nil {
		return nil, s.failed(EntityShareClass, domain.OpUpdate, err)
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		c.Name = name
	}
	if in.VotesPerShare != nil {
		c.VotesPerShare = *in.VotesPerShare
	}
	if in.LiquidationPreference != nil {
		c.LiquidationPreference = in.LiquidationPreference
	}
	if in.Seniority != nil {
		c.Seniority = *in.Seniority
	}

	if err := c.Validate(); err != nil {
		return nil, s.failed(EntityShareClass, domain.OpUpdate, err)
	}
	if err := s.stores.ShareClasses.Update(ctx, c); err != nil {
		return nil, s.failed(EntityShareClass, domain.OpUpdate, fmt.Errorf("update share class: %w", err))
	}

	s.notify(companyID, EntityShareClass, domain.OpUpdate, id, 0)
	return c, nil
}

// DeleteShareClass removes a share class. A class still used by an allocation
// cannot be deleted (storage.ErrReferenced). A pool pointing at it is detached.
func (s *CapTable) DeleteShareClass(ctx context.Context, companyID, id string) error {
	if _, err := s.GetShareClass(ctx, companyID, id); err != nil {
		return s.failed(EntityShareClass, domain.OpDelete, err)
	}

	events, err := s.stores.Events.ListByCompany(ctx, companyID)
	if err != nil {
		return s.failed(EntityShareClass, domain.OpDelete, fmt.Errorf("list events: %w", err))
	}
	for _, e := range events {
		for _, a := range e.Allocations {
			if a.ShareClassID == id {
				return s.failed(EntityShareClass, domain.OpDelete,
					fmt.Errorf("share class %s used by event %s: %w", id, e.ID, storage.ErrReferenced))
			}
		}
	}

	if err := s.detachPoolClass(ctx, companyID, id); err != nil {
		return s.failed(EntityShareClass, domain.OpDelete, err)
	}
	if err := s.stores.ShareClasses.Delete(ctx, id); err != nil {
		return s.failed(EntityShareClass, domain.OpDelete, fmt.Errorf("delete share class: %w", err))
	}

	s.notify(companyID, EntityShareClass, domain.OpDelete, id, 0)
	return nil
}

func (s *CapTable) detachPoolClass(ctx context.Context, companyID, classID string) error {
	if s.stores.Vsop == nil {
		return nil
	}
	pool, err := s.stores.Vsop.GetPool(ctx, companyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get pool: %w", err)
	}
	if pool.ShareClassID == nil || *pool.ShareClassID != classID {
		return nil
	}
	pool.ShareClassID = nil
	pool.UpdatedAt = s.now()
	if err := s.stores.Vsop.UpsertPool(ctx, pool); err != nil {
		return fmt.Errorf("detach pool share class: %w", err)
	}
	return nil
}

// ---- stakeholders ----

// CreateStakeholder adds a stakeholder.
func (s *CapTable) CreateStakeholder(ctx context.Context, companyID string, in StakeholderInput) (*domain.Stakeholder, error) {
	sh := &domain.Stakeholder{
		ID:            s.opts.IDs.New(),
		CompanyID:     companyID,
		Name:          strings.TrimSpace(in.Name),
		Type:          in.Type,
		Email:         in.Email,
		Phone:         in.Phone,
		EntityName:    in.EntityName,
		ContactPerson: in.ContactPerson,
		PartnerEmails: in.PartnerEmails,
		LinkedInURL:   in.LinkedInURL,
		Notes:         in.Notes,
		CreatedAt:     s.now(),
	}

	if err := sh.Validate(); err != nil {
		return nil, s.failed(EntityStakeholder, domain.OpCreate, err)
	}
	if err := s.stores.Stakeholders.Insert(ctx, sh); err != nil {
		return nil, s.failed(EntityStakeholder, domain.OpCreate, fmt.Errorf("insert stakeholder: %w", err))
	}

	s.notify(companyID, EntityStakeholder, domain.OpCreate, sh.ID, 0)
	return sh, nil
}

// GetStakeholder returns a stakeholder of the company.
func (s *CapTable) GetStakeholder(ctx context.Context, companyID, id string) (*domain.Stakeholder, error) {
	sh, err := s.stores.Stakeholders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sh.CompanyID != companyID {
		return nil, storage.ErrNotFound
	}
	return sh, nil
}

// ListStakeholders returns the company stakeholders ordered by name.
func (s *CapTable) ListStakeholders(ctx context.Context, companyID string) ([]*domain.Stakeholder, error) {
	return s.stores.Stakeholders.ListByCompany(ctx, companyID)
}

// UpdateStakeholder applies the non-nil fields of in.
func (s *CapTable) UpdateStakeholder(ctx context.Context, companyID, id string, in StakeholderUpdate) (*domain.Stakeholder, error) {
	sh, err := s.GetStakeholder(ctx, companyID, id)
	if err != nil {
		return nil, s.failed(EntityStakeholder, domain.OpUpdate, err)
	}

	if in.Name != nil {
		sh.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		sh.Type = *in.Type
	}
	setIfPresent(&sh.Email, in.Email)
	setIfPresent(&sh.Phone, in.Phone)
	setIfPresent(&sh.EntityName, in.EntityName)
	setIfPresent(&sh.ContactPerson, in.ContactPerson)
	setIfPresent(&sh.PartnerEmails, in.PartnerEmails)
	setIfPresent(&sh.LinkedInURL, in.LinkedInURL)
	setIfPresent(&sh.Notes, in.Notes)

	if err := sh.Validate(); err != nil {
		return nil, s.failed(EntityStakeholder, domain.OpUpdate, err)
	}
	if err := s.stores.Stakeholders.Update(ctx, sh); err != nil {
		return nil, s.failed(EntityStakeholder, domain.OpUpdate, fmt.Errorf("update stakeholder: %w", err))
	}

	s.notify(companyID, EntityStakeholder, domain.OpUpdate, id, 0)
	return sh, nil
}

func setIfPresent(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

// DeleteStakeholder removes a stakeholder that holds no allocation and no grant.
func (s *CapTable) DeleteStakeholder(ctx context.Context, companyID, id string) error {
	if _, err := s.GetStakeholder(ctx, companyID, id); err != nil {
		return s.failed(EntityStakeholder, domain.OpDelete, err)
	}

	events, err := s.stores.Events.ListByCompany(ctx, companyID)
	if err != nil {
		return s.failed(EntityStakeholder, domain.OpDelete, fmt.Errorf("list events: %w", err))
	}
	for _, e := range events {
		for _, a := range e.Allocations {
			if a.StakeholderID == id {
				return s.failed(EntityStakeholder, domain.OpDelete,
					fmt.Errorf("stakeholder %s holds allocation in event %s: %w", id, e.ID, storage.ErrReferenced))
			}
		}
	}
	if s.stores.Vsop != nil {
		grants, err := s.stores.Vsop.ListGrantsByStakeholder(ctx, id)
		if err != nil {
			return s.failed(EntityStakeholder, domain.OpDelete, fmt.Errorf("list grants: %w", err))
		}
		if len(grants) > 0 {
			return s.failed(EntityStakeholder, domain.OpDelete,
				fmt.Errorf("stakeholder %s holds %d grants: %w", id, len(grants), storage.ErrReferenced))
		}
	}

	if err := s.stores.Stakeholders.Delete(ctx, id); err != nil {
		return s.failed(EntityStakeholder, domain.OpDelete, fmt.Errorf("delete stakeholder: %w", err))
	}

	s.notify(companyID, EntityStakeholder, domain.OpDelete, id, 0)
	return nil
}

// ---- equity events ----

// CreateEquityEvent validates and appends an event with its allocations.
// Every allocation must reference a stakeholder and share class of the same
// company. An unparseable date is stored as absent unless StrictDates is set.
func (s *CapTable) CreateEquityEvent(ctx context.Context, companyID string, in EquityEventInput) (*CreateEventResult, error) {
	parsed, err := s.parseDate(companyID, "date", in.Date)
	if err != nil {
		return nil, s.failed(EntityEquityEvent, domain.OpCreate, err)
	}

	e := &domain.EquityEvent{
		ID:                s.opts.IDs.New(),
		CompanyID:         companyID,
		Name:              strings.TrimSpace(in.Name),
		Type:              in.Type,
		Date:              parsed.Time,
		PreMoneyValuation: in.PreMoneyValuation,
		AmountRaised:      in.AmountRaised,
		PricePerShare:     in.PricePerShare,
		TotalSharesAfter:  in.TotalSharesAfter,
		Notes:             in.Notes,
		Allocations:       make([]domain.Allocation, 0, len(in.Allocations)),
		CreatedAt:         s.now(),
	}
	for _, a := range in.Allocations {
		e.Allocations = append(e.Allocations, domain.Allocation{
			ID:             s.opts.IDs.New(),
			EventID:        e.ID,
			StakeholderID:  a.StakeholderID,
			ShareClassID:   a.ShareClassID,
			Shares:         a.Shares,
			AmountInvested: a.AmountInvested,
			OwnershipPct:   a.OwnershipPct,
			Notes:          a.Notes,
		})
	}

	if err := e.Validate(); err != nil {
		return nil, s.failed(EntityEquityEvent, domain.OpCreate, err)
	}
	if err := s.checkAllocationRefs(ctx, companyID, e.Allocations); err != nil {
		return nil, s.failed(EntityEquityEvent, domain.OpCreate, err)
	}
	if err := s.stores.Events.Insert(ctx, e); err != nil {
		return nil, s.failed(EntityEquityEvent, domain.OpCreate, fmt.Errorf("insert equity event: %w", err))
	}

	version, err := s.stores.Versions.Version(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("read ledger version: %w", err)
	}
	s.notify(companyID, EntityEquityEvent, domain.OpCreate, e.ID, version)

	return &CreateEventResult{Event: e, DateStatus: parsed.Status, Version: version}, nil
}

// checkAllocationRefs resolves every referenced stakeholder and share class once.
func (s *CapTable) checkAllocationRefs(ctx context.Context, companyID string, allocs []domain.Allocation) error {
	seenHolders := make(map[string]bool)
	seenClasses := make(map[string]bool)

	for i, a := range allocs {
		if !seenHolders[a.StakeholderID] {
			sh, err := s.stores.Stakeholders.GetByID(ctx, a.StakeholderID)
			if err != nil {
				return fmt.Errorf("allocations[%d].stakeholder_id %s: %w", i, a.StakeholderID, err)
			}
			if sh.CompanyID != companyID {
				return fmt.Errorf("allocations[%d].stakeholder_id %s: %w", i, a.StakeholderID, ErrCrossCompany)
			}
			seenHolders[a.StakeholderID] = true
		}
		if !seenClasses[a.ShareClassID] {
			c, err := s.stores.ShareClasses.GetByID(ctx, a.ShareClassID)
			if err != nil {
				return fmt.Errorf("allocations[%d].share_class_id %s: %w", i, a.ShareClassID, err)
			}
			if c.CompanyID != companyID {
				return fmt.Errorf("allocations[%d].share_class_id %s: %w", i, a.ShareClassID, ErrCrossCompany)
			}
			seenClasses[a.ShareClassID] = true
		}
	}
	return nil
}

// GetEquityEvent returns an event of the company with its allocations.
func (s *CapTable) GetEquityEvent(ctx context.Context, companyID, id string) (*domain.EquityEvent, error) {
	e, err := s.stores.Events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.CompanyID != companyID {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// ListEquityEvents returns the company events in chronological order.
func (s *CapTable) ListEquityEvents(ctx context.Context, companyID string) ([]domain.EquityEvent, error) {
	events, err := s.stores.Events.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return captable.SortChronological(derefEvents(events)), nil
}

// DeleteEquityEvent removes an event and its allocations.
func (s *CapTable) DeleteEquityEvent(ctx context.Context, companyID, id string) error {
	if _, err := s.GetEquityEvent(ctx, companyID, id); err != nil {
		return s.failed(EntityEquityEvent, domain.OpDelete, err)
	}
	if err := s.stores.Events.Delete(ctx, id); err != nil {
		return s.failed(EntityEquityEvent, domain.OpDelete, fmt.Errorf("delete equity event: %w", err))
	}

	version, err := s.stores.Versions.Version(ctx, companyID)
	if err != nil {
		return fmt.Errorf("read ledger version: %w", err)
	}
	s.notify(companyID, EntityEquityEvent, domain.OpDelete, id, version)
	return nil
}

// ---- projections ----

// ledgerState is one consistent read of a company ledger with references resolved.
type ledgerState struct {
	companyID   string
	version     uint64
	events      []domain.EquityEvent
	classes     []domain.ShareClass
	fingerprint string
}

// loadLedger reads the ledger and resolves allocation references. stable is
// false when a write landed during the read, in which case the result must not be cached.
func (s *CapTable) loadLedger(ctx context.Context, companyID string) (st *ledgerState, stable bool, err error) {
	before, err := s.stores.Versions.Version(ctx, companyID)
	if err != nil {
		return nil, false, fmt.Errorf("read ledger version: %w", err)
	}

	events, err := s.stores.Events.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, false, fmt.Errorf("list events: %w", err)
	}
	holders, err := s.stores.Stakeholders.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, false, fmt.Errorf("list stakeholders: %w", err)
	}
	classes, err := s.stores.ShareClasses.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, false, fmt.Errorf("list share classes: %w", err)
	}

	after, err := s.stores.Versions.Version(ctx, companyID)
	if err != nil {
		return nil, false, fmt.Errorf("read ledger version: %w", err)
	}

	st = &ledgerState{
		companyID: companyID,
		version:   after,
		events:    resolve(derefEvents(events), holders, classes),
		classes:   make([]domain.ShareClass, 0, len(classes)),
	}
	for _, c := range classes {
		st.classes = append(st.classes, *c)
	}
	st.fingerprint = idhash.LedgerFingerprint(companyID, st.events)
	return st, before == after, nil
}

func derefEvents(events []*domain.EquityEvent) []domain.EquityEvent {
	out := make([]domain.EquityEvent, 0, len(events))
	for _, e := range events {
		out = append(out, *e)
	}
	return out
}

// resolve attaches stakeholder and share class records to allocations.
// Unknown references stay nil and project as id-only placeholders.
func resolve(events []domain.EquityEvent, holders []*domain.Stakeholder, classes []*domain.ShareClass) []domain.EquityEvent {
	holderByID := make(map[string]*domain.Stakeholder, len(holders))
	for _, h := range holders {
		holderByID[h.ID] = h
	}
	classByID := make(map[string]*domain.ShareClass, len(classes))
	for _, c := range classes {
		classByID[c.ID] = c
	}

	for i := range events {
		allocs := make([]domain.Allocation, len(events[i].Allocations))
		copy(allocs, events[i].Allocations)
		for j := range allocs {
			allocs[j].Stakeholder = holderByID[allocs[j].StakeholderID]
			allocs[j].ShareClass = classByID[allocs[j].ShareClassID]
		}
		events[i].Allocations = allocs
	}
	return events
}

// cachedView returns the view for the current ledger version, projecting and
// caching it on a miss.
func cachedView[T any](ctx context.Context, s *CapTable, companyID, view string, build func(*ledgerState) T) (T, error) {
	var zero T

	version, err := s.stores.Versions.Version(ctx, companyID)
	if err != nil {
		return zero, fmt.Errorf("read ledger version: %w", err)
	}
	if v, ok := s.cache.get(companyID, version, view); ok {
		s.metrics.RecordCache(view, true)
		s.logger.Debug("projection cache hit", "company_id", companyID, "view", view, "version", version)
		return v.(T), nil
	}
	s.metrics.RecordCache(view, false)

	st, stable, err := s.loadLedger(ctx, companyID)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	result := build(st)
	s.metrics.ObserveProjection(view, time.Since(start))

	if stable {
		s.cache.set(companyID, st.version, view, result)
	}
	return result, nil
}

// GetCapTable projects the current cap table. ShareClasses lists every class of
// the company in seniority order, including classes with no allocations yet.
func (s *CapTable) GetCapTable(ctx context.Context, companyID string) (*CapTableView, error) {
	return cachedView(ctx, s, companyID, ViewCapTable, func(st *ledgerState) *CapTableView {
		snap := captable.ProjectCurrent(st.events)
		snap.ShareClasses = st.classes
		return &CapTableView{CapTableSnapshot: snap, Fingerprint: st.fingerprint, Version: st.version}
	})
}

// GetKPIs summarizes the company ledger.
func (s *CapTable) GetKPIs(ctx context.Context, companyID string) (*KPIView, error) {
	return cachedView(ctx, s, companyID, ViewKPIs, func(st *ledgerState) *KPIView {
		return &KPIView{CapTableKPIs: captable.ComputeKPIs(st.events), Fingerprint: st.fingerprint, Version: st.version}
	})
}

// GetEvolution returns the snapshot after each event in chronological order.
func (s *CapTable) GetEvolution(ctx context.Context, companyID string) (*EvolutionView, error) {
	return cachedView(ctx, s, companyID, ViewEvolution, func(st *ledgerState) *EvolutionView {
		return &EvolutionView{Entries: captable.ProjectEvolution(st.events), Fingerprint: st.fingerprint, Version: st.version}
	})
}

// Fingerprint returns the content hash of the company ledger.
func (s *CapTable) Fingerprint(ctx context.Context, companyID string) (string, error) {
	view, err := s.GetCapTable(ctx, companyID)
	if err != nil {
		return "", err
	}
	return view.Fingerprint, nil
}

// ExportEvolution flattens the evolution into ownership points and appends them
// to the history store under the current ledger fingerprint. Exporting an
// unchanged ledger twice returns storage.ErrDuplicateKey.
func (s *CapTable) ExportEvolution(ctx context.Context, companyID string) (*ExportResult, error) {
	if s.stores.History == nil {
		return nil, ErrHistoryDisabled
	}

	view, err := s.GetEvolution(ctx, companyID)
	if err != nil {
		return nil, err
	}

	points := OwnershipPoints(companyID, view, s.now())
	if err := s.stores.History.InsertBulk(ctx, points); err != nil {
		s.metrics.RecordExport(0, err)
		return nil, fmt.Errorf("export ownership history: %w", err)
	}
	s.metrics.RecordExport(len(points), nil)
	s.logger.Info("ownership history exported",
		"company_id", companyID, "fingerprint", view.Fingerprint, "points", len(points))

	return &ExportResult{CompanyID: companyID, Fingerprint: view.Fingerprint, Points: len(points)}, nil
}

// OwnershipPoints flattens an evolution into one point per stakeholder per event.
// Within an event, points follow the snapshot row order.
func OwnershipPoints(companyID string, view *EvolutionView, exportedAt time.Time) []*domain.OwnershipPoint {
	var points []*domain.OwnershipPoint
	for i, entry := range view.Entries {
		for _, row := range entry.Snapshot.Rows {
			points = append(points, &domain.OwnershipPoint{
				CompanyID:       companyID,
				Fingerprint:     view.Fingerprint,
				EventID:         entry.Event.ID,
				EventIndex:      i,
				EventDate:       entry.Event.Date,
				StakeholderID:   row.Stakeholder.ID,
				StakeholderName: row.Stakeholder.Name,
				Shares:          row.TotalShares,
				TotalShares:     entry.Snapshot.TotalShares,
				OwnershipPct:    row.OwnershipPct,
				ExportedAt:      exportedAt,
			})
		}
	}
	return points
}

// InvalidateCache drops every cached projection.
func (s *CapTable) InvalidateCache() {
	s.cache.flush()
}
