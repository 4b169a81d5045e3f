// Package wsgw provides the inbound WebSocket gateway: the listener that
// accepts client connections, authenticates the first-message handshake,
// and hands authenticated streams to the relay service.
package wsgw

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
	"github.com/Stream-Gate/Streamgate/internal/port/inbound"
	"github.com/Stream-Gate/Streamgate/internal/service"
)

// DefaultHandshakeTimeout bounds the wait for the first client message.
const DefaultHandshakeTimeout = 5 * time.Second

// Transport is the inbound adapter that connects WebSocket clients to the
// relay service. It owns the HTTP listener, the upgrade path, and the
// operational endpoints (/health, /metrics, /admin).
type Transport struct {
	relayService *service.RelayService
	server       *http.Server
	addr         string
	logger       *slog.Logger
	stats        *service.StatsService
	auditor      service.AuditRecorder
	sessions     sessionCounter

	handshakeTimeout time.Duration
	metricsEnabled   bool
	adminHandler     http.Handler
	healthChecker    *HealthChecker
	versionInfo      *VersionInfo
	registry         *prometheus.Registry
	metrics          *Metrics
	upgrader         websocket.Upgrader
}

// sessionCounter is the slice of the session registry the transport needs
// for the live-sessions gauge.
type sessionCounter interface {
	Count(ctx context.Context) (int, error)
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "0.0.0.0:8080".
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithStats sets the statistics service shared with the relay service.
func WithStats(stats *service.StatsService) Option {
	return func(t *Transport) {
		if stats != nil {
			t.stats = stats
		}
	}
}

// WithAuditRecorder sets the audit sink for connection and handshake
// records.
func WithAuditRecorder(rec service.AuditRecorder) Option {
	return func(t *Transport) {
		if rec != nil {
			t.auditor = rec
		}
	}
}

// WithSessionRegistry sets the session registry used for the live-session
// gauge.
func WithSessionRegistry(sessions sessionCounter) Option {
	return func(t *Transport) {
		t.sessions = sessions
	}
}

// WithHandshakeTimeout sets how long the gateway waits for the first
// client message before rejecting the connection.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.handshakeTimeout = d
		}
	}
}

// WithMetricsEnabled controls whether /metrics is exposed.
func WithMetricsEnabled(enabled bool) Option {
	return func(t *Transport) {
		t.metricsEnabled = enabled
	}
}

// WithAdminHandler mounts the admin API under /admin/.
func WithAdminHandler(h http.Handler) Option {
	return func(t *Transport) {
		t.adminHandler = h
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *Transport) {
		t.healthChecker = hc
	}
}

// WithVersionInfo sets the build metadata served on /version.
func WithVersionInfo(info *VersionInfo) Option {
	return func(t *Transport) {
		t.versionInfo = info
	}
}

// noopRecorder drops records when no audit sink is configured.
type noopRecorder struct{}

func (noopRecorder) Record(audit.Record) {}

// NewTransport creates a WebSocket gateway wrapping the given relay
// service.
func NewTransport(relayService *service.RelayService, opts ...Option) *Transport {
	t := &Transport{
		relayService:     relayService,
		addr:             "0.0.0.0:8080",
		logger:           slog.Default(),
		stats:            service.NewStatsService(),
		auditor:          noopRecorder{},
		handshakeTimeout: DefaultHandshakeTimeout,
		metricsEnabled:   true,
		upgrader: websocket.Upgrader{
			// Access is governed by the bearer handshake, not by origin;
			// relay clients are programs, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	for _, opt := range opts {
		opt(t)
	}

	t.registry = prometheus.NewRegistry()
	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(t.registry)
	if t.sessions != nil {
		t.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "streamgate",
				Name:      "sessions_active",
				Help:      "Number of live relay sessions",
			},
			func() float64 {
				n, _ := t.sessions.Count(context.Background())
				return float64(n)
			},
		))
	}

	return t
}

// Start binds the listener and serves connections. It blocks until the
// context is cancelled or the server fails.
//
// Shutdown stops accepting new connections; relay sessions already
// running on hijacked WebSocket connections are left to finish on their
// own.
func (t *Transport) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	if t.adminHandler != nil {
		mux.Handle("/admin/", t.adminHandler)
	}
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		}))
	}
	if t.metricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
			Registry: t.registry,
		}))
	}
	mux.Handle("/version", versionHandler(t.versionInfo))
	// Favicon handler to prevent browser 404 noise in the logs.
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	// Every other path is a relay endpoint; the upstream path shape is
	// the relay's concern, not the client's.
	mux.Handle("/", http.HandlerFunc(t.handleRelay))

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("starting relay listener", "addr", t.addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down listener")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during listener shutdown", "error", err)
		return err
	}

	t.logger.Info("listener shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}

// Compile-time check that Transport implements the inbound port.
var _ inbound.RelayServer = (*Transport)(nil)
