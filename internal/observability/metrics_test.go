package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("test")

	m.RecordMutation("equity_event", "create", nil)
	m.RecordMutation("equity_event", "create", nil)
	m.RecordMutation("equity_event", "create", errors.New("boom"))
	m.RecordCache("captable", true)
	m.RecordCache("captable", false)
	m.RecordExport(12, nil)
	m.RecordExport(0, errors.New("duplicate"))
	m.RecordDateDegradation()

	if got := testutil.ToFloat64(m.MutationsTotal.WithLabelValues("equity_event", "create", "ok")); got != 2 {
		t.Errorf("expected 2 successful mutations, got %v", got)
	}
	if got := testutil.ToFloat64(m.MutationsTotal.WithLabelValues("equity_event", "create", "error")); got != 1 {
		t.Errorf("expected 1 failed mutation, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("captable", "hit")); got != 1 {
		t.Errorf("expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.ExportedPoints); got != 12 {
		t.Errorf("expected 12 exported points, got %v", got)
	}
	if got := testutil.ToFloat64(m.DateDegradations); got != 1 {
		t.Errorf("expected 1 date degradation, got %v", got)
	}
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration
	a := NewMetrics("")
	b := NewMetrics("")

	a.RecordOverAllocation()
	if got := testutil.ToFloat64(b.OverAllocations); got != 0 {
		t.Errorf("expected independent counters, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.RecordMutation("vsop_grant", "create", nil)
	m.ObserveProjection("kpis", time.Millisecond)
	m.SetFeedSubscribers(3)
	m.RecordFeedMessage("sent")
	m.ObserveRequest("/health", "GET", "200", time.Millisecond)

	if m.Registry() != nil {
		t.Error("expected nil registry")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordMutation("stakeholder", "delete", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_ledger_mutations_total{entity="stakeholder",op="delete",status="ok"} 1`) {
		t.Errorf("expected mutation counter in exposition, got:\n%s", rec.Body.String())
	}
}
