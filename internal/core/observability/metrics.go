package observability

import (
	"errors"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of document store fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	docCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_cache_results_total",
			Help: "Document cache lookups by outcome (hit, miss, shared).",
		},
		[]string{"outcome"},
	)

	fetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doc_fetch_errors_total",
			Help: "Failed document fetches by kind.",
		},
		[]string{"kind"},
	)

	cacheOpTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Shared document tier operations by result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Shared document tier operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	resolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolve_duration_seconds",
			Help:    "Duration of region resolves by precision mode.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"precision"},
	)

	escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geometry_escalations_total",
			Help: "Geometry escalations by outcome (confirmed, rejected, failed).",
		},
		[]string{"outcome"},
	)

	degradedBranches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolve_degraded_branches_total",
			Help: "Branches that contributed nothing because of an error.",
		},
		[]string{"tier"},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "view_events_dropped_total",
			Help: "View events dropped because the publish queue was full.",
		},
	)
)

var regMu sync.Mutex

// registers all collectors on reg (default registerer when nil)
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled {
		return
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	regMu.Lock()
	defer regMu.Unlock()
	for _, c := range []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		docCacheResults, fetchErrors, cacheOpTotal, redisOpDuration,
		resolveDuration, escalations, degradedBranches, eventsDropped,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncDocCache(outcome string) {
	docCacheResults.WithLabelValues(outcome).Inc()
}

func IncFetchError(kind string) {
	fetchErrors.WithLabelValues(kind).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOpTotal.WithLabelValues(op, res).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveResolve(highPrecision bool, durationSeconds float64) {
	p := "bbox"
	if highPrecision {
		p = "high"
	}
	resolveDuration.WithLabelValues(p).Observe(durationSeconds)
}

func IncEscalation(outcome string) {
	escalations.WithLabelValues(outcome).Inc()
}

func IncDegraded(tier string) {
	degradedBranches.WithLabelValues(tier).Inc()
}

func IncEventsDropped() {
	eventsDropped.Inc()
}
