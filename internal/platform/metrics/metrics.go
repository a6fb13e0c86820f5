package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the stream gateway.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	admittedTotal     prometheus.Counter
	rejectedTotal     prometheus.Counter
	rateLimitedTotal  prometheus.Counter
	statsDropped      prometheus.Counter
	outcomesTotal     *prometheus.CounterVec
	admissionInFlight prometheus.Gauge
	admissionWaiting  prometheus.Gauge
	admissionCapacity prometheus.Gauge
	activeSessions    prometheus.Gauge
	catalogVideos     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the gateway.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	admittedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_admission_admitted_total",
		Help: "Total number of requests granted an admission permit",
	})
	rejectedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_admission_rejected_total",
		Help: "Total number of requests that could not obtain an admission permit",
	})
	rateLimitedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limited_total",
		Help: "Total number of requests rejected by the per-credential rate limit",
	})
	statsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_stats_dropped_total",
		Help: "Outcome events dropped because the stats queue was full",
	})
	outcomesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_outcomes_total",
		Help: "Dispatched requests by route and outcome",
	}, []string{"route", "outcome"})
	admissionInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_admission_in_flight",
		Help: "Number of admission permits currently held",
	})
	admissionWaiting := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_admission_waiting",
		Help: "Number of requests waiting for an admission permit",
	})
	admissionCapacity := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_admission_capacity",
		Help: "Configured number of admission permits",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_sessions",
		Help: "Number of registered user sessions",
	})
	catalogVideos := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_catalog_videos",
		Help: "Number of videos in the catalog",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		admittedTotal,
		rejectedTotal,
		rateLimitedTotal,
		statsDropped,
		outcomesTotal,
		admissionInFlight,
		admissionWaiting,
		admissionCapacity,
		activeSessions,
		catalogVideos,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		admittedTotal:     admittedTotal,
		rejectedTotal:     rejectedTotal,
		rateLimitedTotal:  rateLimitedTotal,
		statsDropped:      statsDropped,
		outcomesTotal:     outcomesTotal,
		admissionInFlight: admissionInFlight,
		admissionWaiting:  admissionWaiting,
		admissionCapacity: admissionCapacity,
		activeSessions:    activeSessions,
		catalogVideos:     catalogVideos,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// IncAdmitted increments the admitted counter.
func (m *Metrics) IncAdmitted() {
	if m == nil {
		return
	}
	m.admittedTotal.Inc()
}

// IncRejected increments the rejected-at-admission counter.
func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.rejectedTotal.Inc()
}

// IncRateLimited increments the rate limited counter.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

// IncStatsDropped increments the dropped stats events counter.
func (m *Metrics) IncStatsDropped() {
	if m == nil {
		return
	}
	m.statsDropped.Inc()
}

// IncOutcome counts one dispatched request for route with the given outcome.
func (m *Metrics) IncOutcome(route, outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(route, outcome).Inc()
}

// SetAdmission sets the admission gauges.
func (m *Metrics) SetAdmission(inFlight, waiting, capacity int) {
	if m == nil {
		return
	}
	m.admissionInFlight.Set(float64(inFlight))
	m.admissionWaiting.Set(float64(waiting))
	m.admissionCapacity.Set(float64(capacity))
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// SetCatalogVideos sets the catalog size gauge.
func (m *Metrics) SetCatalogVideos(n int) {
	if m == nil {
		return
	}
	m.catalogVideos.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
