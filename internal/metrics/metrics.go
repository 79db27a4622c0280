// Package metrics provides Prometheus instrumentation for the walletrisk
// platform.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletrisk",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "walletrisk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// IngestedRecordsTotal counts per-record ingestion outcomes.
	IngestedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletrisk",
			Name:      "ingested_records_total",
			Help:      "Transaction records processed by outcome (inserted, duplicate, rejected).",
		},
		[]string{"outcome"},
	)

	// IngestBatchesTotal counts batch flushes by result.
	IngestBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletrisk",
			Name:      "ingest_batches_total",
			Help:      "Batch flush attempts by result (ok, retried, failed).",
		},
		[]string{"result"},
	)

	// IngestBatchDuration observes end-to-end batch commit latency.
	IngestBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletrisk",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Latency of one transactional batch write.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ScoringRunsTotal counts scoring runs by result.
	ScoringRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletrisk",
			Name:      "scoring_runs_total",
			Help:      "Scoring runs by result (ok, failed).",
		},
		[]string{"result"},
	)

	// ScoringRunDuration observes full scoring pass duration.
	ScoringRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletrisk",
			Name:      "scoring_run_duration_seconds",
			Help:      "Duration of a full scoring pass including persistence.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	// WalletsScored counts wallets scored across all runs.
	WalletsScored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "walletrisk",
			Name:      "wallets_scored_total",
			Help:      "Total wallet scores computed across runs.",
		},
	)

	// GraphNodes and GraphEdges track the size of the active snapshot.
	GraphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletrisk",
			Name:      "graph_nodes",
			Help:      "Node count of the active graph snapshot.",
		},
	)
	GraphEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletrisk",
			Name:      "graph_edges",
			Help:      "Edge count of the active graph snapshot.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		IngestedRecordsTotal,
		IngestBatchesTotal,
		IngestBatchDuration,
		ScoringRunsTotal,
		ScoringRunDuration,
		WalletsScored,
		GraphNodes,
		GraphEdges,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // route pattern, not raw path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
