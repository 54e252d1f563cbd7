// Package metrics exposes Prometheus instrumentation for PDN calculations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for pdn-calculator
type Registry struct {
	registry *prometheus.Registry

	// Calculation outcomes by subject and risk band
	Calculations *prometheus.CounterVec

	// Calculation failures by subject and error kind
	Errors *prometheus.CounterVec

	// Request handling latency by route
	RequestDuration *prometheus.HistogramVec

	// Accepted and rejected assumption updates
	ConfigUpdates *prometheus.CounterVec

	// Audit writes that failed
	AuditFailures prometheus.Counter

	// Requests refused by the rate limiter
	RateLimited prometheus.Counter
}

// NewRegistry creates a registry with all pdn-calculator metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	m := &Registry{
		registry: prometheus.NewRegistry(),

		Calculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdn_calculations_total",
				Help: "Total number of successful calculations by subject and risk band",
			},
			[]string{"subject", "risk_band"},
		),

		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdn_calculation_errors_total",
				Help: "Total number of rejected calculations by subject and error kind",
			},
			[]string{"subject", "kind"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdn_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"route", "status"},
		),

		ConfigUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdn_config_updates_total",
				Help: "Total number of assumption updates by result",
			},
			[]string{"result"},
		),

		AuditFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdn_audit_failures_total",
				Help: "Total number of audit entries that could not be stored",
			},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pdn_rate_limited_total",
				Help: "Total number of requests refused by the rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		m.Calculations,
		m.Errors,
		m.RequestDuration,
		m.ConfigUpdates,
		m.AuditFailures,
		m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordCalculation counts a successful calculation.
func (m *Registry) RecordCalculation(subject, riskBand string) {
	m.Calculations.WithLabelValues(subject, riskBand).Inc()
}

// RecordError counts a rejected calculation.
func (m *Registry) RecordError(subject, kind string) {
	m.Errors.WithLabelValues(subject, kind).Inc()
}

// RecordConfigUpdate counts an assumption update attempt.
func (m *Registry) RecordConfigUpdate(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	m.ConfigUpdates.WithLabelValues(result).Inc()
}

// RequestTimer tracks execution time for one request
type RequestTimer struct {
	metrics *Registry
	route   string
	start   time.Time
}

// StartRequestTimer begins timing a request on route
func (m *Registry) StartRequestTimer(route string) *RequestTimer {
	return &RequestTimer{metrics: m, route: route, start: time.Now()}
}

// Stop records the elapsed time under the response status
func (t *RequestTimer) Stop(status string) {
	t.metrics.RequestDuration.WithLabelValues(t.route, status).Observe(time.Since(t.start).Seconds())
}
