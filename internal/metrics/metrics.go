// Package metrics provides Prometheus metrics for the crypto tracker.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crypto_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Market data API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_upstream_requests_total",
			Help: "Total number of market data API requests",
		},
		[]string{"endpoint", "result"}, // result: "success", "transport_error", "http_error", "schema_error", "rate_limited"
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crypto_upstream_request_duration_seconds",
			Help:    "Market data API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Price Poller Metrics
	PollerLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_poller_loads_total",
			Help: "Full-range chart loads by result",
		},
		[]string{"result"}, // "success", "error", "stale"
	)

	PollerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_poller_ticks_total",
			Help: "Live poll ticks by result",
		},
		[]string{"result"}, // "appended", "discarded", "skipped", "error", "empty"
	)

	ChartSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypto_chart_sessions_active",
			Help: "Number of mounted chart sessions",
		},
	)

	// Market list Metrics
	MarketRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_market_refresh_total",
			Help: "Market snapshot refreshes by result",
		},
		[]string{"result"},
	)

	MarketSnapshotSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypto_market_snapshot_size",
			Help: "Number of coins in the current market snapshot",
		},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_search_requests_total",
			Help: "Coin searches by the tier that answered",
		},
		[]string{"tier"}, // "local", "remote", "empty", "error"
	)

	// Persistence Metrics
	WatchlistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypto_watchlist_size",
			Help: "Number of coins on the watchlist",
		},
	)

	PersistenceWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_persistence_write_failures_total",
			Help: "Swallowed key-value store write failures",
		},
		[]string{"key"},
	)

	PersistenceCorruptReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_persistence_corrupt_reads_total",
			Help: "Stored values that failed to decode and were treated as empty",
		},
		[]string{"key"},
	)

	// Auth Metrics
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_auth_events_total",
			Help: "Authentication events",
		},
		[]string{"event"}, // "register", "login", "login_failed", "logout", "session_expired", "guest", "import"
	)
)
