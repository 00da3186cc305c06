package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/ledger"
	"equity-ledger/internal/observability"
	"equity-ledger/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// API serves the ledger services over HTTP.
type API struct {
	caps    *ledger.CapTable
	vsop    *ledger.Vsop
	feed    http.Handler // optional websocket change feed
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Handler returns the routed and instrumented HTTP handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("GET /metrics", a.metrics.Handler())

	const c = "/companies/{company}"

	mux.HandleFunc("GET "+c+"/share-classes", a.listShareClasses)
	mux.HandleFunc("POST "+c+"/share-classes", a.createShareClass)
	mux.HandleFunc("GET "+c+"/share-classes/{id}", a.getShareClass)
	mux.HandleFunc("PUT "+c+"/share-classes/{id}", a.updateShareClass)
	mux.HandleFunc("DELETE "+c+"/share-classes/{id}", a.deleteShareClass)

	mux.HandleFunc("GET "+c+"/stakeholders", a.listStakeholders)
	mux.HandleFunc("POST "+c+"/stakeholders", a.createStakeholder)
	mux.HandleFunc("GET "+c+"/stakeholders/{id}", a.getStakeholder)
	mux.HandleFunc("PATCH "+c+"/stakeholders/{id}", a.updateStakeholder)
	mux.HandleFunc("DELETE "+c+"/stakeholders/{id}", a.deleteStakeholder)

	mux.HandleFunc("GET "+c+"/events", a.listEvents)
	mux.HandleFunc("POST "+c+"/events", a.createEvent)
	mux.HandleFunc("GET "+c+"/events/{id}", a.getEvent)
	mux.HandleFunc("DELETE "+c+"/events/{id}", a.deleteEvent)

	mux.HandleFunc("GET "+c+"/captable", a.getCapTable)
	mux.HandleFunc("GET "+c+"/captable/kpis", a.getKPIs)
	mux.HandleFunc("GET "+c+"/captable/evolution", a.getEvolution)
	mux.HandleFunc("POST "+c+"/captable/export", a.exportEvolution)

	mux.HandleFunc("GET "+c+"/vsop/pool", a.getPool)
	mux.HandleFunc("PUT "+c+"/vsop/pool", a.upsertPool)
	mux.HandleFunc("DELETE "+c+"/vsop/pool", a.deletePool)
	mux.HandleFunc("POST "+c+"/vsop/grants", a.createGrant)
	mux.HandleFunc("GET "+c+"/vsop/grants/{id}", a.getGrant)
	mux.HandleFunc("PATCH "+c+"/vsop/grants/{id}", a.updateGrant)
	mux.HandleFunc("DELETE "+c+"/vsop/grants/{id}", a.deleteGrant)
	mux.HandleFunc("GET "+c+"/vsop/summary", a.getSummary)

	root := http.NewServeMux()
	if a.feed != nil {
		// Hijacked connections bypass the instrumented writer.
		root.Handle("GET /ws", a.feed)
	}
	root.Handle("/", a.instrument(mux))
	return root
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)

		// ServeMux records the matched pattern on the request.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		a.metrics.ObserveRequest(route, r.Method, strconv.Itoa(rec.status), time.Since(start))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Share classes

func (a *API) listShareClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := a.caps.ListShareClasses(r.Context(), r.PathValue("company"))
	a.respond(w, r, http.StatusOK, classes, err)
}

func (a *API) createShareClass(w http.ResponseWriter, r *http.Request) {
	var in ledger.ShareClassInput
	if !a.decode(w, r, &in) {
		return
	}
	c, err := a.caps.CreateShareClass(r.Context(), r.PathValue("company"), in)
	a.respond(w, r, http.StatusCreated, c, err)
}

func (a *API) getShareClass(w http.ResponseWriter, r *http.Request) {
	c, err := a.caps.GetShareClass(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusOK, c, err)
}

func (a *API) updateShareClass(w http.ResponseWriter, r *http.Request) {
	var in ledger.ShareClassInput
	if !a.decode(w, r, &in) {
		return
	}
	c, err := a.caps.UpdateShareClass(r.Context(), r.PathValue("company"), r.PathValue("id"), in)
	a.respond(w, r, http.StatusOK, c, err)
}

func (a *API) deleteShareClass(w http.ResponseWriter, r *http.Request) {
	err := a.caps.DeleteShareClass(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusNoContent, nil, err)
}

// Stakeholders

func (a *API) listStakeholders(w http.ResponseWriter, r *http.Request) {
	holders, err := a.caps.ListStakeholders(r.Context(), r.PathValue("company"))
	a.respond(w, r, http.StatusOK, holders, err)
}

func (a *API) createStakeholder(w http.ResponseWriter, r *http.Request) {
	var in ledger.StakeholderInput
	if !a.decode(w, r, &in) {
		return
	}
	sh, err := a.caps.CreateStakeholder(r.Context(), r.PathValue("company"), in)
	a.respond(w, r, http.StatusCreated, sh, err)
}

func (a *API) getStakeholder(w http.ResponseWriter, r *http.Request) {
	sh, err := a.caps.GetStakeholder(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusOK, sh, err)
}

func (a *API) updateStakeholder(w http.ResponseWriter, r *http.Request) {
	var in ledger.StakeholderUpdate
	if !a.decode(w, r, &in) {
		return
	}
	sh, err := a.caps.UpdateStakeholder(r.Context(), r.PathValue("company"), r.PathValue("id"), in)
	a.respond(w, r, http.StatusOK, sh, err)
}

func (a *API) deleteStakeholder(w http.ResponseWriter, r *http.Request) {
	err := a.caps.DeleteStakeholder(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusNoContent, nil, err)
}

// Equity events

func (a *API) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := a.caps.ListEquityEvents(r.Context(), r.PathValue("company"))
	a.respond(w, r, http.StatusOK, events, err)
}

func (a *API) createEvent(w http.ResponseWriter, r *http.Request) {
	var in ledger.EquityEventInput
	if !a.decode(w, r, &in) {
		return
	}
	res, err := a.caps.CreateEquityEvent(r.Context(), r.PathValue("company"), in)
	a.respond(w, r, http.StatusCreated, res, err)
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	evt, err := a.caps.GetEquityEvent(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusOK, evt, err)
}

func (a *API) deleteEvent(w http.ResponseWriter, r *http.Request) {
	err := a.caps.DeleteEquityEvent(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusNoContent, nil, err)
}

// Cap table views

func (a *API) getCapTable(w http.ResponseWriter, r *http.Request) {
	view, err := a.caps.GetCapTable(r.Context(), r.PathValue("company"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.respondTagged(w, r, viewETag(view.Fingerprint, view.Version), view)
}

func (a *API) getKPIs(w http.ResponseWriter, r *http.Request) {
	view, err := a.caps.GetKPIs(r.Context(), r.PathValue("company"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.respondTagged(w, r, viewETag(view.Fingerprint, view.Version), view)
}

func (a *API) getEvolution(w http.ResponseWriter, r *http.Request) {
	view, err := a.caps.GetEvolution(r.Context(), r.PathValue("company"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.respondTagged(w, r, viewETag(view.Fingerprint, view.Version), view)
}

func (a *API) exportEvolution(w http.ResponseWriter, r *http.Request) {
	res, err := a.caps.ExportEvolution(r.Context(), r.PathValue("company"))
	a.respond(w, r, http.StatusCreated, res, err)
}

// viewETag identifies a ledger view. The fingerprint covers the projected
// ledger content and the version moves on every write, including edits to
// fields the fingerprint leaves out such as contact details or unused classes.
func viewETag(fingerprint string, version uint64) string {
	return strconv.Quote(fingerprint + "." + strconv.FormatUint(version, 10))
}

// respondTagged writes a ledger view with a strong ETag and answers a matching
// If-None-Match with 304.
func (a *API) respondTagged(w http.ResponseWriter, r *http.Request, etag string, v any) {
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// VSOP

func (a *API) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := a.vsop.GetPool(r.Context(), r.PathValue("company"))
	a.respond(w, r, http.StatusOK, pool, err)
}

func (a *API) upsertPool(w http.ResponseWriter, r *http.Request) {
	var in ledger.PoolInput
	if !a.decode(w, r, &in) {
		return
	}
	pool, err := a.vsop.UpsertPool(r.Context(), r.PathValue("company"), in)
	a.respond(w, r, http.StatusOK, pool, err)
}

func (a *API) deletePool(w http.ResponseWriter, r *http.Request) {
	err := a.vsop.DeletePool(r.Context(), r.PathValue("company"))
	a.respond(w, r, http.StatusNoContent, nil, err)
}

func (a *API) createGrant(w http.ResponseWriter, r *http.Request) {
	var in ledger.GrantInput
	if !a.decode(w, r, &in) {
		return
	}
	g, err := a.vsop.CreateGrant(r.Context(), r.PathValue("company"), in)
	a.respond(w, r, http.StatusCreated, g, err)
}

func (a *API) getGrant(w http.ResponseWriter, r *http.Request) {
	g, err := a.vsop.GetGrant(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusOK, g, err)
}

func (a *API) updateGrant(w http.ResponseWriter, r *http.Request) {
	var in ledger.GrantUpdate
	if !a.decode(w, r, &in) {
		return
	}
	g, err := a.vsop.UpdateGrant(r.Context(), r.PathValue("company"), r.PathValue("id"), in)
	a.respond(w, r, http.StatusOK, g, err)
}

func (a *API) deleteGrant(w http.ResponseWriter, r *http.Request) {
	err := a.vsop.DeleteGrant(r.Context(), r.PathValue("company"), r.PathValue("id"))
	a.respond(w, r, http.StatusNoContent, nil, err)
}

// getSummary serves the pool summary, optionally as of the as_of query date.
func (a *API) getSummary(w http.ResponseWriter, r *http.Request) {
	company := r.PathValue("company")

	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		s, err := a.vsop.GetSummary(r.Context(), company)
		a.respond(w, r, http.StatusOK, s, err)
		return
	}

	asOf := domain.ParseDate(raw)
	if asOf.Status != domain.DateValid {
		a.writeError(w, r, &domain.ValidationError{Field: "as_of", Reason: fmt.Sprintf("unparseable date %q", raw)})
		return
	}
	s, err := a.vsop.SummaryAt(r.Context(), company, *asOf.Time)
	a.respond(w, r, http.StatusOK, s, err)
}

// Helpers

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (a *API) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, v)
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, storage.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrReferenced),
		errors.Is(err, ledger.ErrPoolCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
