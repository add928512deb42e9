// Package metrics defines Prometheus metrics for the proxy.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeproxy_http_request_duration_seconds",
			Help:    "End-to-end proxy request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_http_requests_total",
			Help: "Total proxied requests",
		},
		[]string{"method", "status"},
	)

	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeproxy_rate_limit_denied_total",
			Help: "Total requests denied by the admission gate",
		},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeproxy_cache_hits_total",
			Help: "Total response cache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeproxy_cache_misses_total",
			Help: "Total response cache misses",
		},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeproxy_cache_entries",
			Help: "Current number of entries held in the response cache",
		},
	)

	CacheBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeproxy_cache_bytes",
			Help: "Current aggregate size in bytes of the response cache",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgeproxy_cache_evictions_total",
			Help: "Total response cache entries reclaimed by the over-capacity eviction pass",
		},
	)

	BackendSelectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_backend_selected_total",
			Help: "Total times each backend was selected",
		},
		[]string{"backend"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeproxy_upstream_request_duration_seconds",
			Help:    "Backend round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "status"},
	)

	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_upstream_errors_total",
			Help: "Total upstream round-trip failures by kind",
		},
		[]string{"kind"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeproxy_admin_websocket_connections",
			Help: "Active admin event-stream WebSocket connections",
		},
	)

	AdminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeproxy_admin_http_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AdminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeproxy_admin_http_requests_total",
			Help: "Total admin API requests",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal,
		RateLimitDeniedTotal, CacheHitsTotal, CacheMissesTotal, CacheEntries, CacheBytes, CacheEvictionsTotal,
		BackendSelectedTotal, UpstreamDuration, UpstreamErrorsTotal,
		WSConnections, AdminRequestDuration, AdminRequestsTotal,
	)
}
