package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/ledger"
	"equity-ledger/internal/observability"
	"equity-ledger/internal/storage"
	"equity-ledger/internal/storage/backend"
	"equity-ledger/internal/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics("test")
	stores := backend.Memory()
	opts := ledger.Options{
		Clock:   testutil.FixedClock(),
		IDs:     testutil.NewStubIDGenerator(),
		Logger:  logger,
		Metrics: metrics,
	}
	api := &API{
		caps:    ledger.NewCapTable(stores, opts),
		vsop:    ledger.NewVsop(stores, opts),
		metrics: metrics,
		logger:  logger,
	}

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, header ...string) *http.Response {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// seed creates one class, two founders and an incorporation event, returning their ids.
func seed(t *testing.T, srv *httptest.Server) (classID, aliceID, bobID string) {
	t.Helper()

	resp := do(t, srv, http.MethodPost, "/companies/acme/share-classes", map[string]any{"name": "Common"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	classID = decodeBody[domain.ShareClass](t, resp).ID

	resp = do(t, srv, http.MethodPost, "/companies/acme/stakeholders", map[string]any{"name": "Alice", "type": "founder"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	aliceID = decodeBody[domain.Stakeholder](t, resp).ID

	resp = do(t, srv, http.MethodPost, "/companies/acme/stakeholders", map[string]any{"name": "Bob", "type": "founder"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bobID = decodeBody[domain.Stakeholder](t, resp).ID

	resp = do(t, srv, http.MethodPost, "/companies/acme/events", map[string]any{
		"name":       "Incorporation",
		"event_type": "incorporation",
		"date":       "2022-03-01",
		"allocations": []map[string]any{
			{"stakeholder_id": aliceID, "share_class_id": classID, "shares": 600000},
			{"stakeholder_id": bobID, "share_class_id": classID, "shares": 400000},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return classID, aliceID, bobID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCapTable_ETag(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	resp := do(t, srv, http.MethodGet, "/companies/acme/captable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	view := decodeBody[ledger.CapTableView](t, resp)

	assert.Equal(t, viewETag(view.Fingerprint, view.Version), etag)
	assert.Equal(t, int64(1_000_000), view.TotalShares)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "Alice", view.Rows[0].Stakeholder.Name)
	assert.Equal(t, 60.0, view.Rows[0].OwnershipPct)

	resp = do(t, srv, http.MethodGet, "/companies/acme/captable", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/companies/acme/captable/kpis", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestCapTable_ETagChangesWithLedger(t *testing.T) {
	srv := newTestServer(t)
	classID, aliceID, _ := seed(t, srv)

	before := do(t, srv, http.MethodGet, "/companies/acme/captable", nil).Header.Get("ETag")

	resp := do(t, srv, http.MethodPost, "/companies/acme/events", map[string]any{
		"name":       "Top-up",
		"event_type": "grant",
		"allocations": []map[string]any{
			{"stakeholder_id": aliceID, "share_class_id": classID, "shares": 1000},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/companies/acme/captable", nil, "If-None-Match", before)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, before, resp.Header.Get("ETag"))
}

func TestCapTable_ETagChangesWithoutShareMovement(t *testing.T) {
	srv := newTestServer(t)
	_, aliceID, _ := seed(t, srv)

	resp := do(t, srv, http.MethodGet, "/companies/acme/captable", nil)
	before := resp.Header.Get("ETag")
	first := decodeBody[ledger.CapTableView](t, resp)
	require.Len(t, first.ShareClasses, 1)

	// Neither write touches an allocation, so the ledger fingerprint stays put.
	resp = do(t, srv, http.MethodPost, "/companies/acme/share-classes", map[string]any{"name": "Series A Preferred", "seniority": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/companies/acme/captable", nil, "If-None-Match", before)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeBody[ledger.CapTableView](t, resp)
	assert.Len(t, second.ShareClasses, 2)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t, before, resp.Header.Get("ETag"))

	afterClass := resp.Header.Get("ETag")
	resp = do(t, srv, http.MethodPatch, "/companies/acme/stakeholders/"+aliceID, map[string]any{"email": "alice@acme.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/companies/acme/captable", nil, "If-None-Match", afterClass)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, afterClass, resp.Header.Get("ETag"))

	// Unchanged ledger still revalidates.
	etag := resp.Header.Get("ETag")
	resp = do(t, srv, http.MethodGet, "/companies/acme/captable", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestEvolutionAndKPIs(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	resp := do(t, srv, http.MethodGet, "/companies/acme/captable/evolution", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	evo := decodeBody[ledger.EvolutionView](t, resp)
	assert.Len(t, evo.Entries, 1)

	resp = do(t, srv, http.MethodGet, "/companies/acme/captable/kpis", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	kpis := decodeBody[ledger.KPIView](t, resp)
	assert.Equal(t, 100.0, kpis.FounderOwnershipPct)
	assert.Equal(t, 1, kpis.RoundsCount)
}

func TestCreateEvent_DegradedDate(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/companies/acme/events", map[string]any{
		"name":       "Bridge",
		"event_type": "funding_round",
		"date":       "sometime in spring",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decodeBody[ledger.CreateEventResult](t, resp)
	assert.Equal(t, domain.DateUnparseable, res.DateStatus)
	assert.Nil(t, res.Event.Date)
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t)
	classID, _, _ := seed(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown stakeholder type", http.MethodPost, "/companies/acme/stakeholders", map[string]any{"name": "X", "type": "pirate"}, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/companies/acme/share-classes", "{", http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/companies/acme/share-classes", map[string]any{"name": "A", "colour": "red"}, http.StatusBadRequest},
		{"missing event", http.MethodGet, "/companies/acme/events/nope", nil, http.StatusNotFound},
		{"other company", http.MethodGet, "/companies/globex/share-classes/" + classID, nil, http.StatusNotFound},
		{"referenced class", http.MethodDelete, "/companies/acme/share-classes/" + classID, nil, http.StatusConflict},
		{"grant without pool", http.MethodPost, "/companies/acme/vsop/grants", map[string]any{"stakeholder_id": "x", "shares_granted": 10}, http.StatusUnprocessableEntity},
		{"bad as_of", http.MethodGet, "/companies/acme/vsop/summary?as_of=yesterday", nil, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			body := decodeBody[errorBody](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestVsopFlow(t *testing.T) {
	srv := newTestServer(t)
	classID, aliceID, _ := seed(t, srv)

	resp := do(t, srv, http.MethodPut, "/companies/acme/vsop/pool", map[string]any{
		"total_shares":   50000,
		"share_class_id": classID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pool := decodeBody[domain.VsopPool](t, resp)
	assert.Equal(t, domain.DefaultPoolName, pool.Name)

	resp = do(t, srv, http.MethodPost, "/companies/acme/vsop/grants", map[string]any{
		"stakeholder_id": aliceID,
		"shares_granted": 4800,
		"grant_date":     "2023-01-15",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	grant := decodeBody[domain.GrantView](t, resp)
	assert.Equal(t, domain.GrantActive, grant.Status)
	// 2023-01 to 2024-09 at the server clock
	assert.Equal(t, int64(2000), grant.VestedShares)
	assert.Equal(t, int64(2800), grant.UnvestedShares)
	assert.True(t, grant.CliffMet)

	// Grants always start active; status is not part of the create body.
	resp = do(t, srv, http.MethodPost, "/companies/acme/vsop/grants", map[string]any{
		"stakeholder_id": aliceID,
		"shares_granted": 100,
		"status":         "fully_vested",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A partial PUT keeps the share class.
	resp = do(t, srv, http.MethodPut, "/companies/acme/vsop/pool", map[string]any{"name": "ESOP 2024"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pool = decodeBody[domain.VsopPool](t, resp)
	assert.Equal(t, "ESOP 2024", pool.Name)
	assert.Equal(t, int64(50000), pool.TotalShares)
	require.NotNil(t, pool.ShareClassID)
	assert.Equal(t, classID, *pool.ShareClassID)

	resp = do(t, srv, http.MethodGet, "/companies/acme/vsop/summary?as_of=2024-01-15", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[domain.VsopSummary](t, resp)
	assert.Equal(t, int64(4800), summary.TotalGranted)
	assert.Equal(t, int64(1200), summary.TotalVested)

	resp = do(t, srv, http.MethodPatch, "/companies/acme/vsop/grants/"+grant.ID, map[string]any{"status": "terminated"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decodeBody[domain.GrantView](t, resp)
	assert.Equal(t, domain.GrantTerminated, patched.Status)
	assert.Zero(t, patched.VestedShares)
	assert.Zero(t, patched.UnvestedShares)

	resp = do(t, srv, http.MethodGet, "/companies/acme/vsop/summary", nil)
	summary = decodeBody[domain.VsopSummary](t, resp)
	assert.Zero(t, summary.TotalGranted)
	assert.Len(t, summary.Grants, 1)

	resp = do(t, srv, http.MethodDelete, "/companies/acme/vsop/grants/"+grant.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, srv, http.MethodGet, "/companies/acme/vsop/grants/"+grant.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	resp := do(t, srv, http.MethodPost, "/companies/acme/captable/export", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decodeBody[ledger.ExportResult](t, resp)
	assert.Equal(t, 2, res.Points)

	resp = do(t, srv, http.MethodPost, "/companies/acme/captable/export", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	resp := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, "test_ledger_mutations_total")
	assert.Contains(t, body, `route="POST /companies/{company}/events"`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("get: %w", storage.ErrNotFound), http.StatusNotFound},
		{&domain.ValidationError{Field: "name", Reason: "required"}, http.StatusUnprocessableEntity},
		{ledger.ErrNoPool, http.StatusUnprocessableEntity},
		{ledger.ErrCrossCompany, http.StatusUnprocessableEntity},
		{storage.ErrDuplicateKey, http.StatusConflict},
		{storage.ErrReferenced, http.StatusConflict},
		{ledger.ErrPoolCapacityExceeded, http.StatusConflict},
		{ledger.ErrHistoryDisabled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestEnvFileFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ".env"},
		{[]string{"--use-memory"}, ".env"},
		{[]string{"--env-file", "prod.env"}, "prod.env"},
		{[]string{"-env-file=dev.env", "--use-memory"}, "dev.env"},
	}
	for _, tt := range tests {
		if got := envFileFromArgs(tt.args, ".env"); got != tt.want {
			t.Errorf("envFileFromArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
