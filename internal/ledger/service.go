// Package ledger implements the mutation contracts and read views of a
// company's cap table and option pool on top of the storage interfaces.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/observability"
	"equity-ledger/internal/storage"
)

// DefaultCacheTTL bounds how long a projection stays cached after its ledger version is superseded.
const DefaultCacheTTL = 5 * time.Minute

// Stores bundles the storage backends used by the services.
// History is optional; without it ExportEvolution returns ErrHistoryDisabled.
type Stores struct {
	ShareClasses storage.ShareClassStore
	Stakeholders storage.StakeholderStore
	Events       storage.EquityEventStore
	Versions     storage.VersionStore
	Vsop         storage.VsopStore
	History      storage.OwnershipHistoryStore
}

// Options configures a service. Zero values select production defaults.
type Options struct {
	Clock    Clock
	IDs      IDGenerator
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Notifier Notifier

	// StrictDates rejects unparseable dates with ErrInvalidDate instead of storing them as absent.
	StrictDates bool

	// EnforcePoolCapacity rejects grants that over-allocate the pool instead of logging a warning.
	EnforcePoolCapacity bool

	CacheTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	if o.IDs == nil {
		o.IDs = UUIDGenerator{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	return o
}

// base carries what both services share.
type base struct {
	stores  Stores
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newBase(stores Stores, opts Options, component string) base {
	opts = opts.withDefaults()
	return base{
		stores:  stores,
		opts:    opts,
		logger:  opts.Logger.With("component", component),
		metrics: opts.Metrics,
	}
}

func (b *base) now() time.Time {
	return b.opts.Clock.Now().UTC()
}

// notify publishes a change and records the mutation metric.
func (b *base) notify(companyID, entity, op, id string, version uint64) {
	b.metrics.RecordMutation(entity, op, nil)
	b.logger.Info("ledger mutation",
		"company_id", companyID, "entity", entity, "op", op, "id", id)
	if b.opts.Notifier == nil {
		return
	}
	b.opts.Notifier.Notify(domain.LedgerChange{
		CompanyID: companyID,
		Entity:    entity,
		Op:        op,
		ID:        id,
		Version:   version,
		At:        b.now(),
	})
}

// failed records a rejected mutation and passes err through.
func (b *base) failed(entity, op string, err error) error {
	b.metrics.RecordMutation(entity, op, err)
	return err
}

// parseDate applies the configured date policy to caller input.
func (b *base) parseDate(companyID, field, raw string) (domain.DateParse, error) {
	parsed := domain.ParseDate(raw)
	if !parsed.Degraded() {
		return parsed, nil
	}
	if b.opts.StrictDates {
		return parsed, fmt.Errorf("%w: %s %q", ErrInvalidDate, field, raw)
	}
	b.metrics.RecordDateDegradation()
	b.logger.Warn("unparseable date stored as absent",
		"company_id", companyID, "field", field, "raw", raw)
	return parsed, nil
}

// Entity names used in change notifications and metrics.
const (
	EntityShareClass  = "share_class"
	EntityStakeholder = "stakeholder"
	EntityEquityEvent = "equity_event"
	EntityVsopPool    = "vsop_pool"
	EntityVsopGrant   = "vsop_grant"
)
