// Package service contains application services.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
	"github.com/Stream-Gate/Streamgate/internal/domain/auth"
	"github.com/Stream-Gate/Streamgate/internal/domain/relay"
	"github.com/Stream-Gate/Streamgate/internal/domain/session"
	"github.com/Stream-Gate/Streamgate/internal/port/outbound"
	"github.com/Stream-Gate/Streamgate/pkg/frame"
)

// AuditRecorder receives relay lifecycle records. Satisfied by
// *AuditService; nil-safe via the noop recorder.
type AuditRecorder interface {
	Record(rec audit.Record)
}

// noopRecorder drops records when auditing is disabled.
type noopRecorder struct{}

func (noopRecorder) Record(audit.Record) {}

// SessionSummary reports how a session ended. The transport uses it to
// drive metrics.
type SessionSummary struct {
	// Started is false when the upstream dial failed and no frames were
	// ever relayed.
	Started bool
	// ClientToUpstream and UpstreamToClient are the final per-direction
	// pump results.
	ClientToUpstream relay.Result
	UpstreamToClient relay.Result
	// Duration is the session lifetime, from successful pairing to the
	// join of both pumps.
	Duration time.Duration
}

// SessionMeta carries per-connection diagnostics into a session.
type SessionMeta struct {
	// RemoteAddr is the client's network address.
	RemoteAddr string
	// ConnectionID correlates log lines for one accepted connection.
	ConnectionID string
}

// RelayService orchestrates one relay session: it dials the upstream with
// the bearer credential, runs one pump per direction, joins both, and
// guarantees upstream release on every exit path.
type RelayService struct {
	dialer   outbound.UpstreamDialer
	sessions session.SessionStore
	auditor  AuditRecorder
	stats    *StatsService
	logger   *slog.Logger
}

// RelayOption configures a RelayService.
type RelayOption func(*RelayService)

// WithSessionStore sets the live-session registry.
func WithSessionStore(store session.SessionStore) RelayOption {
	return func(s *RelayService) { s.sessions = store }
}

// WithAuditRecorder sets the audit sink for lifecycle records.
func WithAuditRecorder(rec AuditRecorder) RelayOption {
	return func(s *RelayService) {
		if rec != nil {
			s.auditor = rec
		}
	}
}

// WithStats sets the statistics service.
func WithStats(stats *StatsService) RelayOption {
	return func(s *RelayService) { s.stats = stats }
}

// WithRelayLogger sets the logger.
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(s *RelayService) { s.logger = logger }
}

// NewRelayService creates the session orchestrator.
func NewRelayService(dialer outbound.UpstreamDialer, opts ...RelayOption) *RelayService {
	s := &RelayService{
		dialer:  dialer,
		auditor: noopRecorder{},
		stats:   NewStatsService(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunSession drives one authenticated session to completion.
//
// The client stream stays untouched on upstream dial failure; the caller
// owns its closure. On success, both pumps run concurrently and BOTH are
// joined before returning. The first pump to finish closes both streams
// so the sibling's blocking read unblocks and the join completes. The
// upstream stream is released on every exit path.
//
// RunSession never panics across this boundary; every failure is logged,
// audited, and counted instead. The returned summary reports how the
// session ended.
func (s *RelayService) RunSession(ctx context.Context, client relay.FrameStream, bearerToken string, meta SessionMeta) SessionSummary {
	logger := s.logger.With("remote_addr", meta.RemoteAddr)
	if meta.ConnectionID != "" {
		logger = logger.With("connection_id", meta.ConnectionID)
	}
	fingerprint := auth.Fingerprint(bearerToken)

	upstream, err := s.dialer.Dial(ctx, bearerToken)
	if err != nil {
		// The client connection is deliberately left open here; from
		// the client's side the session simply never produces data.
		logger.Error("upstream dial failed",
			"token_fingerprint", fingerprint,
			"error", err,
		)
		s.stats.RecordDialFailure()
		rec := audit.NewRecord(audit.EventUpstreamDialFailed)
		rec.RemoteAddr = meta.RemoteAddr
		rec.TokenFingerprint = fingerprint
		rec.Error = err.Error()
		s.auditor.Record(rec)
		return SessionSummary{}
	}
	defer func() {
		_ = upstream.Close()
	}()

	sess := s.registerSession(ctx, meta.RemoteAddr, fingerprint, logger)
	if sess != nil {
		logger = logger.With("session_id", sess.ID)
		defer s.deregisterSession(sess.ID)
	}

	s.stats.RecordSessionStarted()
	defer s.stats.RecordSessionEnded()

	startRec := audit.NewRecord(audit.EventSessionStarted)
	startRec.RemoteAddr = meta.RemoteAddr
	startRec.TokenFingerprint = fingerprint
	if sess != nil {
		startRec.SessionID = sess.ID
	}
	s.auditor.Record(startRec)

	logger.Info("session started", "token_fingerprint", fingerprint)
	startedAt := time.Now()

	// Either pump finishing tears the whole session down: closing both
	// streams unblocks the sibling's read so the join is bounded.
	var teardown sync.Once
	closeBoth := func() {
		teardown.Do(func() {
			_ = client.Close()
			_ = upstream.Close()
		})
	}

	var c2u, u2c relay.Result
	var g errgroup.Group
	g.Go(func() error {
		c2u = s.runPump(client, upstream, frame.ClientToUpstream, logger)
		closeBoth()
		return nil
	})
	g.Go(func() error {
		u2c = s.runPump(upstream, client, frame.UpstreamToClient, logger)
		closeBoth()
		return nil
	})
	// Pump outcomes are contained in their Results; the group never
	// carries an error. Wait joins both directions, it does not race.
	_ = g.Wait()
	closeBoth()

	duration := time.Since(startedAt)
	s.recordSessionClosed(sess, meta, fingerprint, c2u, u2c, duration)

	logger.Info("session closed",
		"duration", duration,
		"frames_client_to_upstream", c2u.Frames,
		"frames_upstream_to_client", u2c.Frames,
		"frames_dropped", c2u.Dropped+u2c.Dropped,
	)

	return SessionSummary{
		Started:          true,
		ClientToUpstream: c2u,
		UpstreamToClient: u2c,
		Duration:         duration,
	}
}

// runPump executes one forwarding direction and accounts for its result.
// A pump error is terminal for the session but never escapes.
func (s *RelayService) runPump(src, dst relay.FrameStream, dir frame.Direction, logger *slog.Logger) relay.Result {
	res := relay.Pump(src, dst, dir, logger)
	if res.Err != nil {
		logger.Warn("relay direction ended with error",
			"direction", dir.String(),
			"error", res.Err,
		)
	}
	s.stats.RecordFrames(dir, res.Frames, res.Bytes)
	s.stats.RecordDropped(res.Dropped)
	return res
}

func (s *RelayService) registerSession(ctx context.Context, remoteAddr, fingerprint string, logger *slog.Logger) *session.Session {
	if s.sessions == nil {
		return nil
	}
	sess, err := session.New(remoteAddr, fingerprint)
	if err != nil {
		logger.Warn("failed to create session record", "error", err)
		return nil
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		logger.Warn("failed to register session", "error", err)
		return nil
	}
	return sess
}

func (s *RelayService) deregisterSession(id string) {
	// Teardown must not depend on the caller's context still being live.
	_ = s.sessions.Delete(context.Background(), id)
}

func (s *RelayService) recordSessionClosed(sess *session.Session, meta SessionMeta, fingerprint string, c2u, u2c relay.Result, duration time.Duration) {
	rec := audit.NewRecord(audit.EventSessionClosed)
	rec.RemoteAddr = meta.RemoteAddr
	rec.TokenFingerprint = fingerprint
	if sess != nil {
		rec.SessionID = sess.ID
	}
	rec.FramesClientToUpstream = c2u.Frames
	rec.FramesUpstreamToClient = u2c.Frames
	rec.FramesDropped = c2u.Dropped + u2c.Dropped
	rec.DurationMillis = duration.Milliseconds()
	if c2u.Err != nil {
		rec.Error = c2u.Err.Error()
	} else if u2c.Err != nil {
		rec.Error = u2c.Err.Error()
	}
	s.auditor.Record(rec)
}
