// Package metrics exposes Prometheus instrumentation for the event pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGESTION
// ══════════════════════════════════════════════════════════════════════════════

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_ingested_total",
		Help: "Total events accepted into the event log",
	}, []string{"event_type"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_rejected_total",
		Help: "Total events rejected before persistence",
	}, []string{"reason"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "event_ingest_duration_seconds",
		Help:    "Latency of the full ingest path (validate + persist)",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

var (
	AggregationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregations_applied_total",
		Help: "Total score increments applied to the counter store",
	})

	AggregationsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregations_duplicate_total",
		Help: "Total deliveries skipped because the event was already applied",
	})

	AggregationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregation_retries_total",
		Help: "Total retry attempts against the counter store",
	})

	AggregationsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregations_dead_lettered_total",
		Help: "Total aggregation tasks abandoned after exhausting retries",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aggregation_queue_depth",
		Help: "Tasks currently buffered in the aggregation queue",
	})

	AchievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "achievements_unlocked_total",
		Help: "Total achievements unlocked",
	}, []string{"name"})
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS AND RECONCILIATION
// ══════════════════════════════════════════════════════════════════════════════

var (
	StatsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stats_cache_hits_total",
		Help: "Stats responses served from the cache",
	})

	StatsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stats_cache_misses_total",
		Help: "Stats requests that had to be assembled from the stores",
	})

	CounterRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counter_rebuilds_total",
		Help: "Score counters recomputed from the event log",
	})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliations_total",
		Help: "Reconciliation runs by outcome",
	}, []string{"outcome"})

	ReconcileDrift = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_drift_points",
		Help:    "Absolute score drift discovered per reconciled user",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKGROUND JOBS
// ══════════════════════════════════════════════════════════════════════════════

var (
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_job_runs_total",
		Help: "Scheduled job executions by job name and outcome",
	}, []string{"job", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_job_duration_seconds",
		Help:    "Scheduled job execution time by job name",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"job"})
)

// ══════════════════════════════════════════════════════════════════════════════
// HTTP
// ══════════════════════════════════════════════════════════════════════════════

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"route"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
