// Package metrics exposes the service's Prometheus collectors. All recording methods
// are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/infrastructure/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fx"

// Import outcomes
const (
	ImportCreated  = "created"
	ImportExisting = "existing"
	ImportFailed   = "failed"
)

// Metrics holds the service collectors
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ResilienceEventsTotal *prometheus.CounterVec
	CircuitState          prometheus.Gauge

	CacheLookupsTotal  *prometheus.CounterVec
	ImportsTotal       *prometheus.CounterVec
	ConversionsTotal   prometheus.Counter
	ScheduledJobsTotal *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		ResilienceEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_resilience_events_total",
				Help:      "Retries and circuit breaker transitions for upstream calls",
			},
			[]string{"event"},
		),

		CircuitState: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "upstream_circuit_state",
				Help:      "Upstream circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by key and result",
			},
			[]string{"key", "result"},
		),

		ImportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_imports_total",
				Help:      "Rate imports by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		ConversionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of successful currency conversions",
			},
		),

		ScheduledJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_job_runs_total",
				Help:      "Scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),
	}
}

// ObserveHTTPRequest counts a request and records its latency
func (m *Metrics) ObserveHTTPRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// CacheHit counts a cache hit for key
func (m *Metrics) CacheHit(key string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(key, "hit").Inc()
}

// CacheMiss counts a cache miss for key
func (m *Metrics) CacheMiss(key string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(key, "miss").Inc()
}

// Import counts an import attempt by outcome
func (m *Metrics) Import(provider, outcome string) {
	if m == nil {
		return
	}
	m.ImportsTotal.WithLabelValues(provider, outcome).Inc()
}

// Conversion counts a successful conversion
func (m *Metrics) Conversion() {
	if m == nil {
		return
	}
	m.ConversionsTotal.Inc()
}

// JobRun counts a scheduled run as success or failure
func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.ScheduledJobsTotal.WithLabelValues(job, result).Inc()
}

// ResilienceHandler records policy events; pass it to resilience.NewPolicy
func (m *Metrics) ResilienceHandler() resilience.EventHandler {
	return func(e resilience.Event) {
		if m == nil {
			return
		}
		m.ResilienceEventsTotal.WithLabelValues(string(e.Type)).Inc()

		switch e.Type {
		case resilience.EventCircuitClosed:
			m.CircuitState.Set(0)
		case resilience.EventCircuitHalfOpen:
			m.CircuitState.Set(1)
		case resilience.EventCircuitOpened:
			m.CircuitState.Set(2)
		}
	}
}
