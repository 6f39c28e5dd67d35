package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	decisionsTotal        *prometheus.CounterVec
	evaluationSeconds     prometheus.Histogram
	semanticRequestsTotal *prometheus.CounterVec
	fingerprintCacheTotal *prometheus.CounterVec
	assistantFallbacks    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gema_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_originality_decisions_total",
			Help: "Originality decisions grouped by final status and the path that produced them.",
		}, []string{"status", "path"})

		evaluationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gema_originality_evaluation_seconds",
			Help:    "End-to-end latency of an originality evaluation.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		})

		semanticRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_semantic_requests_total",
			Help: "Batch semantic similarity calls grouped by outcome.",
		}, []string{"outcome"})

		fingerprintCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_fingerprint_cache_total",
			Help: "Fingerprint cache lookups grouped by result.",
		}, []string{"result"})

		assistantFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gema_assistant_fallbacks_total",
			Help: "Assistant tasks answered with the built-in fallback.",
		}, []string{"task"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			decisionsTotal,
			evaluationSeconds,
			semanticRequestsTotal,
			fingerprintCacheTotal,
			assistantFallbacks,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Decisions counts originality decisions by status and path.
func Decisions() *prometheus.CounterVec {
	RegisterMetrics()
	return decisionsTotal
}

// EvaluationLatency observes full evaluation latency.
func EvaluationLatency() prometheus.Histogram {
	RegisterMetrics()
	return evaluationSeconds
}

// SemanticRequests counts semantic similarity calls.
func SemanticRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return semanticRequestsTotal
}

// FingerprintCache counts fingerprint cache hits and misses.
func FingerprintCache() *prometheus.CounterVec {
	RegisterMetrics()
	return fingerprintCacheTotal
}

// AssistantFallbacks counts assistant answers served from fallbacks.
func AssistantFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return assistantFallbacks
}
