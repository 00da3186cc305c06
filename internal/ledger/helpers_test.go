package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/observability"
	"equity-ledger/internal/storage/memory"
	"equity-ledger/internal/testutil"
)

const company = "acme"

// changeLog records published changes.
type changeLog struct {
	mu      sync.Mutex
	changes []domain.LedgerChange
}

func (l *changeLog) Notify(c domain.LedgerChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *changeLog) all() []domain.LedgerChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.LedgerChange, len(l.changes))
	copy(out, l.changes)
	return out
}

type fixture struct {
	caps    *CapTable
	vsop    *Vsop
	stores  Stores
	clock   *testutil.StubClock
	log     *changeLog
	metrics *observability.Metrics
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	versions := memory.NewVersions()
	stores := Stores{
		ShareClasses: memory.NewShareClassStore(versions),
		Stakeholders: memory.NewStakeholderStore(versions),
		Events:       memory.NewEquityEventStore(versions),
		Versions:     versions,
		Vsop:         memory.NewVsopStore(),
		History:      memory.NewOwnershipHistoryStore(),
	}

	f := &fixture{
		stores:  stores,
		clock:   testutil.FixedClock(),
		log:     &changeLog{},
		metrics: observability.NewMetrics("test"),
	}
	opts := Options{
		Clock:    f.clock,
		IDs:      testutil.NewStubIDGenerator(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  f.metrics,
		Notifier: f.log,
	}
	for _, m := range mutate {
		m(&opts)
	}

	f.caps = NewCapTable(stores, opts)
	f.vsop = NewVsop(stores, opts)
	return f
}

func (f *fixture) shareClass(t *testing.T, name string, seniority int) *domain.ShareClass {
	t.Helper()
	c, err := f.caps.CreateShareClass(context.Background(), company, ShareClassInput{Name: name, Seniority: &seniority})
	require.NoError(t, err)
	return c
}

func (f *fixture) stakeholder(t *testing.T, name string, typ domain.StakeholderType) *domain.Stakeholder {
	t.Helper()
	sh, err := f.caps.CreateStakeholder(context.Background(), company, StakeholderInput{Name: name, Type: typ})
	require.NoError(t, err)
	return sh
}

func (f *fixture) event(t *testing.T, in EquityEventInput) *domain.EquityEvent {
	t.Helper()
	res, err := f.caps.CreateEquityEvent(context.Background(), company, in)
	require.NoError(t, err)
	return res.Event
}

func money(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func intPtr(v int) *int { return &v }

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }
