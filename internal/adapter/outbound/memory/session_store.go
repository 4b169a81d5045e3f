// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Stream-Gate/Streamgate/internal/domain/session"
)

// MemorySessionStore implements session.SessionStore with an in-memory
// map. Thread-safe for concurrent access. Relay sessions are transient,
// so this is the production registry, not a test stand-in.
type MemorySessionStore struct {
	sessions map[string]*session.Session
	mu       sync.RWMutex
}

// NewSessionStore creates a new in-memory session registry.
func NewSessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*session.Session),
	}
}

// Create registers a new live session.
func (s *MemorySessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation.
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// Get retrieves a session by ID.
// Returns session.ErrSessionNotFound if the session is not live.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return copySession(sess), nil
}

// Delete removes a session at teardown. Deleting an unknown ID is a
// no-op.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// List returns all live sessions, newest first.
func (s *MemorySessionStore) List(ctx context.Context) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, copySession(sess))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

// Count returns the number of live sessions.
func (s *MemorySessionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// copySession creates a copy of a session.
func copySession(sess *session.Session) *session.Session {
	cp := *sess
	return &cp
}

// Compile-time interface verification.
var _ session.SessionStore = (*MemorySessionStore)(nil)
