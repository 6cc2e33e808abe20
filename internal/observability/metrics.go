// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results recorded per tier.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultExpired = "expired"
	ResultError   = "error"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cache tier metrics
	TierLookups   *prometheus.CounterVec
	Invalidations *prometheus.CounterVec

	// Computation metrics
	Computations     *prometheus.CounterVec
	ComputeDuration  prometheus.Histogram
	InFlight         prometheus.Gauge
	JoinedWaiters    prometheus.Counter
	TradesNormalized prometheus.Counter

	// Upstream metrics
	UpstreamLatency *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec

	// Event metrics
	EventsPublished *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulCompute prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wallet_profiler"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Cache tier metrics
		TierLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Profile lookups by tier and result",
		}, []string{"tier", "result"}),
		Invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Profile invalidations by trigger",
		}, []string{"trigger"}),

		// Computation metrics
		Computations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "runs_total",
			Help:      "Fresh profile computations by status",
		}, []string{"status"}),
		ComputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "duration_seconds",
			Help:      "Fresh profile computation duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "in_flight",
			Help:      "Number of fresh computations currently running",
		}),
		JoinedWaiters: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "joined_waiters_total",
			Help:      "Requests that joined an in-flight computation instead of starting one",
		}),
		TradesNormalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compute",
			Name:      "trades_normalized_total",
			Help:      "Total number of trades produced by the normalizer",
		}),

		// Upstream metrics
		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_latency_seconds",
			Help:      "Upstream call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "method"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Upstream call errors by provider and method",
		}, []string{"provider", "method"}),

		// Event metrics
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Profile events published by status",
		}, []string{"status"}),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulCompute: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_compute_timestamp",
			Help:      "Unix timestamp of the last successful fresh computation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTierLookup records the outcome of a tier lookup.
func (m *Metrics) RecordTierLookup(tier, result string) {
	m.TierLookups.WithLabelValues(tier, result).Inc()
}

// RecordComputation records a finished fresh computation.
func (m *Metrics) RecordComputation(d time.Duration, err error) {
	m.ComputeDuration.Observe(d.Seconds())
	if err != nil {
		m.Computations.WithLabelValues("failed").Inc()
		return
	}
	m.Computations.WithLabelValues("ok").Inc()
	m.LastSuccessfulCompute.SetToCurrentTime()
}

// RecordInvalidation records an invalidation by trigger (api, watcher).
func (m *Metrics) RecordInvalidation(trigger string) {
	m.Invalidations.WithLabelValues(trigger).Inc()
}

// RecordEventPublish records a profile event publish attempt.
func (m *Metrics) RecordEventPublish(err error) {
	if err != nil {
		m.EventsPublished.WithLabelValues("failed").Inc()
		return
	}
	m.EventsPublished.WithLabelValues("ok").Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordUpstreamCall records upstream call latency and errors.
func RecordUpstreamCall(provider, method string, d time.Duration, err error) {
	DefaultMetrics.UpstreamLatency.WithLabelValues(provider, method).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.UpstreamErrors.WithLabelValues(provider, method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, d time.Duration, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
