package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scenarioLabel atomic.Value

func init() {
	scenarioLabel.Store("direct")
}

func SetScenario(s string) {
	if s == "" {
		s = "direct"
	}
	scenarioLabel.Store(s)
}

func getScenario() string {
	if v := scenarioLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "direct"
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "scenario"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status", "scenario"},
	)

	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmlt_upstream_requests_total",
			Help: "Upstream calls by target, endpoint and status (0 = transport failure).",
		},
		[]string{"upstream", "endpoint", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmlt_upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "endpoint"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Response cache lookups by outcome.",
		},
		[]string{"outcome", "scenario"},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Cache backend operations by result.",
		},
		[]string{"op", "result"},
	)

	geocodeCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_cache_results_total",
			Help: "Geocode cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Meeting change events handled by the invalidation consumer.",
		},
		[]string{"op", "result"},
	)

	hotKeysTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotness_tracked_keys",
			Help: "Keys currently held by the hotness tracker.",
		},
	)

	invalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidation_keys_deleted_total",
			Help: "Cache keys removed because of meeting change events.",
		},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	s := getScenario()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, s).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, s).Observe(durationSeconds)
}

// ObserveUpstream records one call to the BMLT server or the geocoder.
func ObserveUpstream(upstream, endpoint string, status int, durationSeconds float64) {
	upstreamRequestsTotal.WithLabelValues(upstream, endpoint, strconv.Itoa(status)).Inc()
	upstreamLatencySeconds.WithLabelValues(upstream, endpoint).Observe(durationSeconds)
}

func IncCacheHit(scenario string) {
	s := scenario
	if s == "" {
		s = getScenario()
	}
	cacheResults.WithLabelValues("hit", s).Inc()
}

func IncCacheMiss(scenario string) {
	s := scenario
	if s == "" {
		s = getScenario()
	}
	cacheResults.WithLabelValues("miss", s).Inc()
}

func ObserveCacheOp(op string, err error) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOps.WithLabelValues(op, res).Inc()
}

func IncGeocodeCache(hit bool) {
	if hit {
		geocodeCacheResults.WithLabelValues("hit").Inc()
		return
	}
	geocodeCacheResults.WithLabelValues("miss").Inc()
}

// ObserveInvalidation counts one event; result is "ok", "duplicate" or "error".
func ObserveInvalidation(op, result string, keysDeleted int) {
	invalidationEvents.WithLabelValues(op, result).Inc()
	if keysDeleted > 0 {
		invalidatedKeys.Add(float64(keysDeleted))
	}
}

func SetHotKeys(n int) {
	hotKeysTracked.Set(float64(n))
}

// HotKeysGauge exposes the tracker gauge for tests.
func HotKeysGauge() prometheus.Gauge { return hotKeysTracked }
