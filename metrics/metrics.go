package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trends_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Pipeline Metrics
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trends_pipeline_duration_seconds",
			Help:    "Duration of full trend pipeline runs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"country", "outcome"}, // outcome: ok, degraded, empty
	)

	PipelineCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trends_pipeline_candidates",
			Help:    "Deduplicated candidate pool size per pipeline run",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 200},
		},
		[]string{"country"},
	)

	// Cache Metrics
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_cache_requests_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"result"}, // hit, miss, error
	)

	CacheSharedFlights = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trends_cache_shared_flights_total",
			Help: "Callers that joined an in-flight computation instead of starting one",
		},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trends_cache_invalidated_entries_total",
			Help: "Result cache entries removed by explicit invalidation",
		},
	)

	// Provider Metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_provider_requests_total",
			Help: "External provider calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"}, // ok, error, quota, open
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trends_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// LLM Metrics
	LLMBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_llm_batches_total",
			Help: "Relevance scoring batches by status",
		},
		[]string{"status"}, // ok, parse_error, failed, skipped
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_llm_tokens_total",
			Help: "LLM tokens consumed",
		},
		[]string{"direction"}, // input, output
	)

	LLMSpendEUR = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trends_llm_spend_eur",
			Help: "LLM spend committed in the current month",
		},
	)

	// Feed crawler
	FeedCrawls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trends_feed_crawls_total",
			Help: "Scheduled trending feed pulls by country and outcome",
		},
		[]string{"country", "outcome"},
	)
)

// RecordAPIRequest observes one HTTP request
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// RecordProviderCall counts one provider call
func RecordProviderCall(provider, op, outcome string) {
	ProviderRequests.WithLabelValues(provider, op, outcome).Inc()
}
