package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicgather_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// Registrations counts account registrations by result (success|failure).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicgather_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	// TokenRotations counts refresh token rotations by result (success|failure).
	TokenRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicgather_refresh_rotations_total",
			Help: "Total number of refresh token rotations",
		},
		[]string{"result"},
	)

	// ActiveRefreshTokens tracks refresh tokens that are neither revoked nor expired.
	ActiveRefreshTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "epicgather_active_refresh_tokens",
			Help: "Number of active refresh tokens",
		},
	)

	// EmailDispatches counts outbound transactional emails by template and result.
	EmailDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epicgather_email_dispatches_total",
			Help: "Total number of transactional email dispatch attempts",
		},
		[]string{"template", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epicgather_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
