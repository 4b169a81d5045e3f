package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New builds a Session with a fresh random ID and the current time.
func New(remoteAddr, tokenFingerprint string) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:               id,
		RemoteAddr:       remoteAddr,
		TokenFingerprint: tokenFingerprint,
		StartedAt:        time.Now().UTC(),
	}, nil
}

// GenerateSessionID creates a cryptographically random session ID.
// Returns 64 hex characters (32 bytes).
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}
