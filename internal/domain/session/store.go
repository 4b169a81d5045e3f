package session

import (
	"context"
	"errors"
)

// SessionStore is the live-session registry.
// This interface is defined in the domain to avoid circular imports.
// The relay registers and removes sessions; the admin API enumerates them.
type SessionStore interface {
	// Create registers a new live session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session is not live.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session at teardown.
	Delete(ctx context.Context, id string) error

	// List returns all live sessions, newest first.
	List(ctx context.Context) ([]*Session, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}

// ErrSessionNotFound is returned when a session is not live.
var ErrSessionNotFound = errors.New("session not found")
