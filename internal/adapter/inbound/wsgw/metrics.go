package wsgw

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values for the direction dimension.
const (
	labelClientToUpstream = "client_to_upstream"
	labelUpstreamToClient = "upstream_to_client"
)

// Metrics holds all Prometheus metrics for the relay transport.
type Metrics struct {
	ConnectionsTotal          prometheus.Counter
	SessionsTotal             prometheus.Counter
	AuthFailuresTotal         *prometheus.CounterVec
	UpstreamDialFailuresTotal prometheus.Counter
	FramesRelayedTotal        *prometheus.CounterVec
	FramesDroppedTotal        *prometheus.CounterVec
	SessionDuration           prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamgate",
				Name:      "connections_total",
				Help:      "Total WebSocket connections accepted",
			},
		),
		SessionsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamgate",
				Name:      "sessions_total",
				Help:      "Total relay sessions successfully paired with the upstream",
			},
		),
		AuthFailuresTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamgate",
				Name:      "auth_failures_total",
				Help:      "Total handshakes rejected before a session started",
			},
			[]string{"reason"}, // token_missing, malformed_handshake, handshake_timeout
		),
		UpstreamDialFailuresTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "streamgate",
				Name:      "upstream_dial_failures_total",
				Help:      "Total upstream WebSocket dial failures",
			},
		),
		FramesRelayedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamgate",
				Name:      "frames_relayed_total",
				Help:      "Total frames forwarded, by direction",
			},
			[]string{"direction"},
		),
		FramesDroppedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamgate",
				Name:      "frames_dropped_total",
				Help:      "Total undecodable frames dropped instead of forwarded, by direction",
			},
			[]string{"direction"},
		),
		SessionDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "streamgate",
				Name:      "session_duration_seconds",
				Help:      "Relay session lifetime in seconds",
				// Sessions are long-lived streams, not requests.
				Buckets: []float64{0.1, 1, 10, 60, 300, 1800, 3600, 14400},
			},
		),
	}
}
