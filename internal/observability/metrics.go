package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	importRows     *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	dedupEvents    prometheus.Counter
	notFoundTotal  prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veranda_http_requests_total",
		Help: "Number of HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veranda_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veranda_pos_import_rows_total",
		Help: "Imported POS rows by outcome (ok, skipped, voided, refund).",
	}, []string{"kind", "outcome"})
	importDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veranda_pos_import_duration_seconds",
		Help:    "Duration of POS import runs per file kind.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"kind"})
	dedup := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veranda_pos_import_dedup_events_total",
		Help: "Receipt headers discarded because an earlier business day already owned the id.",
	})
	notFound := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veranda_pos_import_unmatched_receipts_total",
		Help: "Line-item rows whose receipt id was not present in any day index.",
	})
	registry.MustRegister(requests, duration, importRows, importDuration, dedup, notFound)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		importRows:      importRows,
		importDuration:  importDuration,
		dedupEvents:     dedup,
		notFoundTotal:   notFound,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveImportRows adds to the per-outcome row counter.
func (m *Metrics) ObserveImportRows(kind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(kind, outcome).Add(float64(n))
}

// ObserveImportDuration records how long an import run took.
func (m *Metrics) ObserveImportDuration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.importDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveDedupEvents counts discarded duplicate header rows.
func (m *Metrics) ObserveDedupEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dedupEvents.Add(float64(n))
}

// ObserveUnmatchedReceipts counts line rows without a matching day index entry.
func (m *Metrics) ObserveUnmatchedReceipts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notFoundTotal.Add(float64(n))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
