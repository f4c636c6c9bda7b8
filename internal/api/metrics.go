package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidly_client_requests_total",
			Help: "Total API requests issued by the client, by method and status class",
		},
		[]string{"method", "status"},
	)

	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidly_client_token_refresh_total",
			Help: "Total token refresh attempts, by outcome",
		},
		[]string{"outcome"},
	)

	breakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guidly_client_breaker_state",
			Help: "Current API circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(tokenRefreshTotal)
	prometheus.MustRegister(breakerState)
}
