// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name when no namespace is configured.
const DefaultNamespace = "equity_ledger"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Ledger metrics
	MutationsTotal   *prometheus.CounterVec
	DateDegradations prometheus.Counter
	OverAllocations  prometheus.Counter

	// Projection metrics
	ProjectionDuration *prometheus.HistogramVec
	CacheRequests      *prometheus.CounterVec

	// Export metrics
	ExportsTotal   *prometheus.CounterVec
	ExportedPoints prometheus.Counter

	// Feed metrics
	FeedSubscribers prometheus.Gauge
	FeedMessages    *prometheus.CounterVec

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered on its own registry,
// together with the Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "mutations_total",
			Help:      "Total number of ledger mutations by entity, operation and status",
		}, []string{"entity", "op", "status"}),
		DateDegradations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "date_degradations_total",
			Help:      "Total number of unparseable event dates stored as absent",
		}),
		OverAllocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vsop",
			Name:      "pool_over_allocations_total",
			Help:      "Total number of grant writes that left a pool over-allocated",
		}),

		ProjectionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "duration_seconds",
			Help:      "Time to replay the ledger into a view",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"view"}),
		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projection",
			Name:      "cache_requests_total",
			Help:      "Projection cache lookups by view and result",
		}, []string{"view", "result"}),

		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Total number of ownership history exports by status",
		}, []string{"status"}),
		ExportedPoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "points_total",
			Help:      "Total number of ownership points written",
		}),

		FeedSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of change feed subscribers",
		}),
		FeedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Change feed messages by outcome",
		}, []string{"outcome"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordMutation counts one ledger write.
func (m *Metrics) RecordMutation(entity, op string, err error) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(entity, op, status(err)).Inc()
}

// RecordDateDegradation counts an unparseable date accepted as absent.
func (m *Metrics) RecordDateDegradation() {
	if m == nil {
		return
	}
	m.DateDegradations.Inc()
}

// RecordOverAllocation counts a grant write that exceeded pool capacity.
func (m *Metrics) RecordOverAllocation() {
	if m == nil {
		return
	}
	m.OverAllocations.Inc()
}

// ObserveProjection records how long a view took to compute.
func (m *Metrics) ObserveProjection(view string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProjectionDuration.WithLabelValues(view).Observe(d.Seconds())
}

// RecordCache records a projection cache hit or miss.
func (m *Metrics) RecordCache(view string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(view, result).Inc()
}

// RecordExport records an ownership history export.
func (m *Metrics) RecordExport(points int, err error) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(status(err)).Inc()
	if err == nil {
		m.ExportedPoints.Add(float64(points))
	}
}

// SetFeedSubscribers updates the subscriber gauge.
func (m *Metrics) SetFeedSubscribers(n int) {
	if m == nil {
		return
	}
	m.FeedSubscribers.Set(float64(n))
}

// RecordFeedMessage counts a change feed delivery outcome: sent or dropped.
func (m *Metrics) RecordFeedMessage(outcome string) {
	if m == nil {
		return
	}
	m.FeedMessages.WithLabelValues(outcome).Inc()
}

// ObserveRequest records an HTTP request.
func (m *Metrics) ObserveRequest(route, method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, code).Observe(d.Seconds())
}
