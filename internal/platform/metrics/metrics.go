package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine. Every method is
// nil-safe so services can run without a registry in tests.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec

	ConsentRecorded *prometheus.CounterVec

	RequestsCreated      *prometheus.CounterVec
	RequestsDeduplicated *prometheus.CounterVec
	RequestsFinished     *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	QueueDepth           prometheus.Gauge

	CategoryRuns    *prometheus.CounterVec
	CategoryRetries *prometheus.CounterVec
	CategoryLatency *prometheus.HistogramVec

	RetentionAffected *prometheus.CounterVec
	RetentionSweeps   *prometheus.CounterVec

	AuditDropped prometheus.Counter

	RateLimited *prometheus.CounterVec

	RedisPoolTotalConns prometheus.Gauge
	RedisPoolIdleConns  prometheus.Gauge
	RedisPoolTimeouts   prometheus.Counter
}

// New creates the engine metrics on reg. Pass prometheus.NewRegistry() in
// tests so collectors never collide with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsr_endpoint_latency_seconds",
			Help:    "Latency of HTTP endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ConsentRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_consent_recorded_total",
			Help: "Consent record calls, labeled by purpose and whether a new version was appended",
		}, []string{"purpose", "changed"}),
		RequestsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_requests_created_total",
			Help: "Privacy requests created, labeled by kind",
		}, []string{"kind"}),
		RequestsDeduplicated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_requests_deduplicated_total",
			Help: "Create calls answered with an existing non-terminal request",
		}, []string{"kind"}),
		RequestsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_requests_finished_total",
			Help: "Privacy requests that reached a terminal state",
		}, []string{"kind", "state"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsr_request_processing_seconds",
			Help:    "Time from claim to terminal state",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 30, 60, 300},
		}, []string{"kind"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsr_worker_queue_depth",
			Help: "Request ids waiting in the worker queue",
		}),
		CategoryRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_category_runs_total",
			Help: "Per-category handler executions, labeled by operation and outcome",
		}, []string{"operation", "outcome"}),
		CategoryRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_category_retries_total",
			Help: "Retries of transient per-category failures",
		}, []string{"operation"}),
		CategoryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsr_category_latency_seconds",
			Help:    "Latency of per-category handler executions including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		RetentionAffected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_retention_records_total",
			Help: "Records erased or anonymized by the retention sweeper",
		}, []string{"category", "action"}),
		RetentionSweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_retention_sweeps_total",
			Help: "Retention sweeper passes, labeled by outcome",
		}, []string{"outcome"}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "dsr_audit_dropped_total",
			Help: "Audit events that could not be persisted",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsr_rate_limited_total",
			Help: "Requests rejected with 429, labeled by limiter scope",
		}, []string{"scope"}),
		RedisPoolTotalConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsr_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		RedisPoolIdleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "dsr_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
		RedisPoolTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "dsr_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
	}
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) IncConsentRecorded(purpose string, changed bool) {
	if m == nil {
		return
	}
	m.ConsentRecorded.WithLabelValues(purpose, boolLabel(changed)).Inc()
}

func (m *Metrics) IncRequestCreated(kind string) {
	if m == nil {
		return
	}
	m.RequestsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRequestDeduplicated(kind string) {
	if m == nil {
		return
	}
	m.RequestsDeduplicated.WithLabelValues(kind).Inc()
}

// ObserveRequestFinished records a terminal transition and its processing time.
func (m *Metrics) ObserveRequestFinished(kind, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsFinished.WithLabelValues(kind, state).Inc()
	if d > 0 {
		m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveCategoryRun records one category execution. outcome is "ok",
// "timeout", "transient" (retries exhausted) or "failed".
func (m *Metrics) ObserveCategoryRun(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CategoryRuns.WithLabelValues(operation, outcome).Inc()
	m.CategoryLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) IncCategoryRetry(operation string) {
	if m == nil {
		return
	}
	m.CategoryRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) AddRetentionAffected(category, action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetentionAffected.WithLabelValues(category, action).Add(float64(n))
}

func (m *Metrics) IncRetentionSweep(outcome string) {
	if m == nil {
		return
	}
	m.RetentionSweeps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}

func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
