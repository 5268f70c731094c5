// Package observability provides Prometheus metrics for monitoring the
// onset-detection pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. Namespace and
// subsystem grouping follows the Namespace-Subsystem-Name-Help convention
// of the original metrics.go, retargeted from Solana ingestion/discovery
// concerns to the five-stage onset-detection pipeline.
type Metrics struct {
	// Ingestion metrics
	TicksProcessed     prometheus.Counter
	TicksRejected      *prometheus.CounterVec
	TickProcessingLatency prometheus.Histogram

	// Detection metrics
	CandidatesEmitted        *prometheus.CounterVec // by strategy
	ConfirmedEmitted         prometheus.Counter
	RefractoryRejected       prometheus.Counter
	CPDGateTriggers          prometheus.Counter
	OpenCandidatesGauge      *prometheus.GaugeVec // by symbol

	// Stage latency
	PipelineStageLatency *prometheus.HistogramVec // by stage

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulTick prometheus.Gauge
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "onset_detect"
	}

	return &Metrics{
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_processed_total",
			Help:      "Total number of ticks successfully pushed through the pipeline",
		}),
		TicksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ticks_rejected_total",
			Help:      "Total number of ticks rejected, by reason",
		}, []string{"reason"}),
		TickProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tick_processing_latency_seconds",
			Help:      "Per-tick Pipeline.Push latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		CandidatesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "candidates_emitted_total",
			Help:      "Total number of candidate events emitted, by winning strategy",
		}, []string{"strategy"}),
		ConfirmedEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "confirmed_emitted_total",
			Help:      "Total number of onset-confirmed events emitted",
		}),
		RefractoryRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "refractory_rejected_total",
			Help:      "Total number of candidates suppressed by the refractory window",
		}),
		CPDGateTriggers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "cpd_gate_triggers_total",
			Help:      "Total number of CPD gate pass-through triggers",
		}),
		OpenCandidatesGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "open_candidates",
			Help:      "Number of candidates currently awaiting confirmation, by symbol",
		}, []string{"symbol"}),

		PipelineStageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Latency of an individual pipeline stage in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_tick_timestamp",
			Help:      "Unix millisecond timestamp of the last successfully processed tick",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTickProcessed increments the ticks processed counter.
func RecordTickProcessed() {
	DefaultMetrics.TicksProcessed.Inc()
}

// RecordTickRejected records a rejected tick, by reason.
func RecordTickRejected(reason string) {
	DefaultMetrics.TicksRejected.WithLabelValues(reason).Inc()
}

// RecordCandidate records a candidate event emitted by strategy.
func RecordCandidate(strategy string) {
	DefaultMetrics.CandidatesEmitted.WithLabelValues(strategy).Inc()
}

// RecordConfirmed records an onset-confirmed event.
func RecordConfirmed() {
	DefaultMetrics.ConfirmedEmitted.Inc()
}

// RecordRefractoryRejected records a refractory-suppressed candidate.
func RecordRefractoryRejected() {
	DefaultMetrics.RefractoryRejected.Inc()
}

// RecordStageLatency records one pipeline stage's processing latency.
func RecordStageLatency(stage string, seconds float64) {
	DefaultMetrics.PipelineStageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateLastSuccessfulTick updates the health gauge to tsMs.
func UpdateLastSuccessfulTick(tsMs int64) {
	DefaultMetrics.LastSuccessfulTick.Set(float64(tsMs))
}
