// Package metrics holds the Prometheus collectors for the dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dashboard"

var (
	// AuthCallbacks counts OAuth callback outcomes.
	// Labels: result (success or a failure reason)
	AuthCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "callbacks_total",
			Help:      "Total number of OAuth callbacks by outcome",
		},
		[]string{"result"},
	)

	// SyncRuns counts platform sync runs.
	// Labels: platform, result (success, error)
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of platform sync runs",
		},
		[]string{"platform", "result"},
	)

	// SyncPosts counts posts handled during sync.
	// Labels: platform, result (created, updated, failed)
	SyncPosts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "posts_total",
			Help:      "Total number of posts processed by sync",
		},
		[]string{"platform", "result"},
	)

	// SyncDuration tracks how long a platform sync takes.
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of platform syncs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"platform"},
	)

	// Analyses counts AI analysis attempts.
	// Labels: result (success, fallback, error)
	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of post analyses by outcome",
		},
		[]string{"result"},
	)

	// HTTPRequests counts served requests.
	// Labels: method, status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"method", "status"},
	)

	// HTTPDuration tracks request latency.
	HTTPDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RateLimited counts requests rejected by the per-IP limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)

	// OAuthStates reports how many OAuth states are waiting to be consumed.
	OAuthStates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "pending_states",
			Help:      "Number of issued OAuth states not yet consumed or swept",
		},
	)
)
