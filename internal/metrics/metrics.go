package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RewriteRequests tracks rewrite requests by terminal status.
	RewriteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewriter_requests_total",
			Help: "Total number of rewrite requests",
		},
		[]string{"status"},
	)

	// RewriteDuration tracks end-to-end rewrite latency.
	RewriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rewriter_request_duration_seconds",
			Help:    "Rewrite request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RewriteErrors tracks classified errors by code.
	RewriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewriter_errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"code"},
	)

	// RetryAttempts tracks failed attempts that entered the retry path.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewriter_retry_attempts_total",
			Help: "Total number of failed attempts seen by the retry executor",
		},
		[]string{"code"},
	)

	// QueueDepth tracks the current backlog size.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rewriter_queue_depth",
			Help: "Number of tasks waiting in the backlog",
		},
	)

	// QueueActive tracks the number of currently executing tasks.
	QueueActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rewriter_queue_active",
			Help: "Number of tasks currently executing",
		},
	)

	// CacheHits and CacheMisses track result cache effectiveness.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewriter_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewriter_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)
)
