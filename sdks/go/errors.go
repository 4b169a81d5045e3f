package streamgate

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrConnClosed is returned when the connection is used after Close,
	// or when the relay closed it normally.
	ErrConnClosed = errors.New("connection closed")

	// ErrRejected is returned when the relay refuses the session, for
	// example on a missing bearer token or a handshake timeout.
	ErrRejected = errors.New("session rejected")
)

// RejectedError is returned when the relay closes the connection with a
// policy or error status instead of relaying. It carries the WebSocket
// close code and reason sent by the relay.
type RejectedError struct {
	// Code is the WebSocket close code (1008 for a missing token, 1011
	// for handshake timeouts and malformed handshakes).
	Code int
	// Reason is the close reason text from the relay.
	Reason string
}

// Error returns a human-readable description of the rejection.
func (e *RejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("session rejected (%d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("session rejected (%d)", e.Code)
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrRejected).
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
