// Package observability provides Prometheus metrics and the gin middleware
// that records them.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts HTTP requests by method, route template and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benkyo_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "benkyo_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthEventsTotal counts register, login and logout outcomes.
	AuthEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benkyo_auth_events_total",
			Help: "Authentication events",
		},
		[]string{"event", "outcome"},
	)

	// ThrottledTotal counts login attempts rejected by the throttle.
	ThrottledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "benkyo_login_throttled_total",
			Help: "Throttled login attempts",
		},
	)

	// PrunedTokensTotal counts expired access tokens removed by the pruner.
	PrunedTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "benkyo_pruned_tokens_total",
			Help: "Expired access tokens removed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthEventsTotal,
		ThrottledTotal,
		PrunedTokensTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
