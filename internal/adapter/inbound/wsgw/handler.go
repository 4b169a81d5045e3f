package wsgw

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Stream-Gate/Streamgate/internal/adapter/wstream"
	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
	"github.com/Stream-Gate/Streamgate/internal/domain/auth"
	"github.com/Stream-Gate/Streamgate/internal/domain/relay"
	"github.com/Stream-Gate/Streamgate/internal/service"
)

// Close reasons sent to rejected clients. The wording is part of the
// protocol contract with clients.
const (
	closeReasonTokenMissing  = "Bearer token missing"
	closeReasonInternalError = "Internal error"
)

// handleRelay is the gatekeeper for one client connection: upgrade, wait
// for the first-message handshake, then hand the stream to the relay
// service. The handler blocks for the lifetime of the session.
func (t *Transport) handleRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		t.logger.Warn("websocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		return
	}

	stream := wstream.New(conn)
	defer func() {
		_ = stream.Close()
	}()

	connectionID := uuid.New().String()
	logger := t.logger.With(
		"remote_addr", stream.RemoteAddr(),
		"connection_id", connectionID,
	)
	logger.Debug("connection accepted")

	t.stats.RecordConnection()
	t.metrics.ConnectionsTotal.Inc()
	rec := audit.NewRecord(audit.EventConnectionAccepted)
	rec.RemoteAddr = stream.RemoteAddr()
	t.auditor.Record(rec)

	token, ok := t.awaitHandshake(stream, logger)
	if !ok {
		return
	}

	summary := t.relayService.RunSession(r.Context(), stream, token, service.SessionMeta{
		RemoteAddr:   stream.RemoteAddr(),
		ConnectionID: connectionID,
	})
	t.observeSession(summary)
}

// awaitHandshake reads and parses the first client message within the
// handshake timeout. On failure it closes the connection with the
// prescribed status code and returns ok=false.
func (t *Transport) awaitHandshake(stream *wstream.Stream, logger *slog.Logger) (string, bool) {
	_ = stream.SetReadDeadline(time.Now().Add(t.handshakeTimeout))

	payload, err := stream.ReadFrame()
	if err != nil {
		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			t.rejectHandshake(stream, logger,
				websocket.CloseInternalServerErr, closeReasonInternalError,
				audit.ReasonTimeout, err)
		case errors.Is(err, relay.ErrStreamClosed):
			logger.Debug("client closed before handshake")
		default:
			logger.Warn("handshake read failed", "error", err)
		}
		return "", false
	}
	_ = stream.SetReadDeadline(time.Time{})

	token, err := auth.ParseHandshake(payload)
	switch {
	case err == nil:
		return token, true
	case errors.Is(err, auth.ErrTokenMissing):
		t.rejectHandshake(stream, logger,
			websocket.ClosePolicyViolation, closeReasonTokenMissing,
			audit.ReasonTokenMissing, err)
	default:
		t.rejectHandshake(stream, logger,
			websocket.CloseInternalServerErr, closeReasonInternalError,
			audit.ReasonMalformed, err)
	}
	return "", false
}

// rejectHandshake closes an unauthenticated connection with the given
// status code and accounts for the rejection.
func (t *Transport) rejectHandshake(stream *wstream.Stream, logger *slog.Logger, code int, closeReason, auditReason string, err error) {
	logger.Warn("handshake rejected",
		"close_code", code,
		"reason", auditReason,
		"error", err,
	)

	t.stats.RecordAuthFailure(auditReason)
	t.metrics.AuthFailuresTotal.WithLabelValues(auditReason).Inc()

	rec := audit.NewRecord(audit.EventAuthFailed)
	rec.RemoteAddr = stream.RemoteAddr()
	rec.Reason = auditReason
	rec.Error = err.Error()
	t.auditor.Record(rec)

	_ = stream.CloseWithStatus(code, closeReason)
}

// observeSession feeds a finished session's accounting into the metrics.
func (t *Transport) observeSession(sum service.SessionSummary) {
	if !sum.Started {
		t.metrics.UpstreamDialFailuresTotal.Inc()
		return
	}

	t.metrics.SessionsTotal.Inc()
	t.metrics.SessionDuration.Observe(sum.Duration.Seconds())
	t.metrics.FramesRelayedTotal.WithLabelValues(labelClientToUpstream).
		Add(float64(sum.ClientToUpstream.Frames))
	t.metrics.FramesRelayedTotal.WithLabelValues(labelUpstreamToClient).
		Add(float64(sum.UpstreamToClient.Frames))
	t.metrics.FramesDroppedTotal.WithLabelValues(labelClientToUpstream).
		Add(float64(sum.ClientToUpstream.Dropped))
	t.metrics.FramesDroppedTotal.WithLabelValues(labelUpstreamToClient).
		Add(float64(sum.UpstreamToClient.Dropped))
}
