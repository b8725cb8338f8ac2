package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles the Prometheus collectors of the service. All methods are
// safe on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	SearchPagesTotal     *prometheus.CounterVec
	SearchCacheTotal     *prometheus.CounterVec
	CandidatesTotal      prometheus.Counter
	NewURLsTotal         prometheus.Counter
	BookingAttemptsTotal *prometheus.CounterVec
	BookingOutcomesTotal *prometheus.CounterVec
	AttemptDuration      prometheus.Histogram
	RunsTotal            *prometheus.CounterVec
	RunsInFlight         prometheus.Gauge
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		SearchPagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_pages_total",
				Help: "Search result pages requested, by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		SearchCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_cache_lookups_total",
				Help: "Search cache lookups by result (hit, miss, error).",
			},
			[]string{"result"},
		),
		CandidatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_candidates_total",
				Help: "Calendar links extracted from search snippets.",
			},
		),
		NewURLsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_new_urls_total",
				Help: "Calendar links not seen in any previous run.",
			},
		),
		BookingAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_attempts_total",
				Help: "Booking attempts by resulting status and proxy draw phase.",
			},
			[]string{"status", "phase"},
		),
		BookingOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_outcomes_total",
				Help: "Per-URL booking outcomes.",
			},
			[]string{"outcome"},
		),
		AttemptDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "booking_attempt_duration_seconds",
				Help:    "Wall-clock duration of single booking attempts.",
				Buckets: []float64{5, 15, 30, 60, 120, 240, 480},
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runs_total",
				Help: "Asynchronous runs reaching a status.",
			},
			[]string{"status"},
		),
		RunsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "runs_in_flight",
				Help: "Asynchronous runs queued or running.",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchPagesTotal,
		m.SearchCacheTotal,
		m.CandidatesTotal,
		m.NewURLsTotal,
		m.BookingAttemptsTotal,
		m.BookingOutcomesTotal,
		m.AttemptDuration,
		m.RunsTotal,
		m.RunsInFlight,
	)
	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// IncSearchPage counts a fetched (or failed) search page.
func (m *Metrics) IncSearchPage(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.SearchPagesTotal.WithLabelValues(endpoint, outcome).Inc()
}

// IncSearchCache counts a cache lookup.
func (m *Metrics) IncSearchCache(result string) {
	if m == nil {
		return
	}
	m.SearchCacheTotal.WithLabelValues(result).Inc()
}

// AddCandidates adds n extracted links.
func (m *Metrics) AddCandidates(n int) {
	if m == nil {
		return
	}
	m.CandidatesTotal.Add(float64(n))
}

// AddNewURLs adds n previously unseen links.
func (m *Metrics) AddNewURLs(n int) {
	if m == nil {
		return
	}
	m.NewURLsTotal.Add(float64(n))
}

// ObserveAttempt records one booking attempt.
func (m *Metrics) ObserveAttempt(status, phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.BookingAttemptsTotal.WithLabelValues(status, phase).Inc()
	m.AttemptDuration.Observe(d.Seconds())
}

// IncOutcome counts a per-URL booking outcome.
func (m *Metrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	m.BookingOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RunTransition records a run entering status; inFlightDelta adjusts the
// in-flight gauge.
func (m *Metrics) RunTransition(status string, inFlightDelta float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunsInFlight.Add(inFlightDelta)
}
