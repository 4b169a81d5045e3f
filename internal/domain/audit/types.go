// Package audit contains domain types for the relay's audit trail.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event constants for relay lifecycle records.
const (
	// EventConnectionAccepted marks a client connection that completed
	// the WebSocket upgrade.
	EventConnectionAccepted = "connection.accepted"
	// EventAuthFailed marks a connection rejected during the handshake.
	EventAuthFailed = "auth.failed"
	// EventSessionStarted marks a successful upstream pairing.
	EventSessionStarted = "session.started"
	// EventUpstreamDialFailed marks an upstream connect failure.
	EventUpstreamDialFailed = "upstream.dial_failed"
	// EventSessionClosed marks the end of a session, after both
	// forwarding directions terminated.
	EventSessionClosed = "session.closed"
)

// Reason constants for auth.failed records. They double as metric label
// values.
const (
	ReasonTokenMissing = "token_missing"
	ReasonMalformed    = "malformed_handshake"
	ReasonTimeout      = "handshake_timeout"
)

// Record represents a single auditable relay event. Records are written
// as JSON lines, so every field carries a tag; empty optional fields are
// omitted.
type Record struct {
	// ID is a unique record identifier.
	ID string `json:"id"`
	// Timestamp is when the event occurred (UTC).
	Timestamp time.Time `json:"timestamp"`
	// Event categorizes the record (connection.*, auth.*, session.*,
	// upstream.*).
	Event string `json:"event"`
	// SessionID correlates records belonging to one session. Empty for
	// connections rejected before a session existed.
	SessionID string `json:"session_id,omitempty"`
	// RemoteAddr is the client's network address.
	RemoteAddr string `json:"remote_addr,omitempty"`
	// TokenFingerprint is the xxhash digest of the bearer credential.
	// The credential itself is never recorded.
	TokenFingerprint string `json:"token_fingerprint,omitempty"`
	// Reason qualifies auth.failed records.
	Reason string `json:"reason,omitempty"`
	// Error carries the diagnostic text of the triggering error.
	Error string `json:"error,omitempty"`

	// Session close accounting.
	FramesClientToUpstream int64 `json:"frames_client_to_upstream,omitempty"`
	FramesUpstreamToClient int64 `json:"frames_upstream_to_client,omitempty"`
	FramesDropped          int64 `json:"frames_dropped,omitempty"`
	DurationMillis         int64 `json:"duration_millis,omitempty"`
}

// NewRecord builds a Record for the given event with a fresh ID and the
// current time.
func NewRecord(event string) Record {
	return Record{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Event:     event,
	}
}
