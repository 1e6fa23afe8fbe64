package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weather-proxy/internal/health"
)

// Lookup sources for LookupsTotal.
const (
	SourceCache    = "cache"
	SourceStore    = "store"
	SourceUpstream = "upstream"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream provider call rate by outcome.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream provider latency. Watch for: p95 > 2s.
	UpstreamDuration *prometheus.HistogramVec

	// Weather lookups by where the answer came from (cache, store, upstream).
	// Cache effectiveness = cache / sum; freshness churn = upstream / sum.
	LookupsTotal *prometheus.CounterVec

	// Failed lookups by error category.
	LookupErrorsTotal *prometheus.CounterVec

	// Store latency per operation (find_latest, save).
	StoreOperationDuration *prometheus.HistogramVec

	// Result cache flushes (startup + every tick).
	CacheFlushesTotal prometheus.Counter

	// Result cache backend errors by operation (get, set, clear). Non-fatal.
	CacheErrorsTotal *prometheus.CounterVec

	// Upstream fetches shared by concurrent callers for the same city.
	CoalescedFetchesTotal prometheus.Counter

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Store warming runs, failures and duration.
	StoreWarmingTotal           prometheus.Counter
	StoreWarmingErrorsTotal     prometheus.Counter
	StoreWarmingDurationSeconds prometheus.Histogram

	rateLimitGaugesOnce sync.Once
	cacheSizeGaugeOnce  sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream weather provider calls",
		},
		[]string{"status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream weather provider latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherLookupsTotal",
			Help: "Weather lookups served, by source (cache, store, upstream)",
		},
		[]string{"source"},
	)
	LookupErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherLookupErrorsTotal",
			Help: "Failed weather lookups by error category",
		},
		[]string{"category"},
	)
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Weather store operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "status"},
	)
	CacheFlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheFlushesTotal",
			Help: "Total number of full result cache flushes",
		},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Result cache backend errors by operation",
		},
		[]string{"operation"},
	)
	CoalescedFetchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coalescedFetchesTotal",
			Help: "Lookups that shared an in-flight upstream fetch for the same city",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	StoreWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storeWarmingTotal",
			Help: "Store warming runs",
		},
	)
	StoreWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storeWarmingErrorsTotal",
			Help: "Store warming runs with at least one failed city",
		},
	)
	StoreWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storeWarmingDurationSeconds",
			Help:    "Store warming run duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration,
		LookupsTotal, LookupErrorsTotal,
		StoreOperationDuration,
		CacheFlushesTotal, CacheErrorsTotal, CoalescedFetchesTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		StoreWarmingTotal, StoreWarmingErrorsTotal, StoreWarmingDurationSeconds,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with the overload window.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(health.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(health.DenialCount(window)) },
			),
		)
	})
}

// RegisterCacheSizeGauge exposes the in-process result cache size. Only the in-memory backend can report it.
func RegisterCacheSizeGauge(size func() int) {
	cacheSizeGaugeOnce.Do(func() {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "cacheEntries",
				Help: "Entries currently held in the in-process result cache",
			},
			func() float64 { return float64(size()) },
		))
	})
}

// CircuitBreakerStateValue maps a breaker state name to the gauge value.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordCircuitBreakerTransition records a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(CircuitBreakerStateValue(to))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
