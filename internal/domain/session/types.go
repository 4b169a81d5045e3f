// Package session tracks live relay sessions: one authenticated client
// connection paired with its upstream connection.
package session

import (
	"time"
)

// Session describes one live relay session. It is registered when the
// upstream connection is established and removed when both forwarding
// directions have terminated. The bearer credential itself is never
// stored; only its fingerprint is.
type Session struct {
	// ID is a cryptographically random identifier, 32 bytes hex-encoded.
	ID string `json:"id"`
	// RemoteAddr is the client's network address.
	RemoteAddr string `json:"remote_addr"`
	// TokenFingerprint is the xxhash digest of the bearer credential.
	TokenFingerprint string `json:"token_fingerprint"`
	// StartedAt is when the upstream connection came up (UTC).
	StartedAt time.Time `json:"started_at"`
}

// Age returns how long the session has been running.
func (s *Session) Age() time.Duration {
	return time.Since(s.StartedAt)
}
