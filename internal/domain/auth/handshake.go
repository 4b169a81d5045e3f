// Package auth contains the domain logic for authenticating inbound relay
// connections: parsing the first-message handshake and deriving safe token
// fingerprints for diagnostics.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrTokenMissing indicates a well-formed handshake without a usable
// bearer_token value. An empty string counts as missing.
var ErrTokenMissing = errors.New("bearer token missing")

// ErrMalformedHandshake indicates a first message that is not a JSON
// object carrying the handshake fields.
var ErrMalformedHandshake = errors.New("malformed handshake")

// Handshake is the first message a client must send after connecting.
// Fields other than bearer_token are accepted and ignored.
type Handshake struct {
	BearerToken string `json:"bearer_token"`
}

// ParseHandshake extracts the bearer credential from the first client
// payload. The credential is opaque: no validation beyond presence is
// performed here or anywhere else in the relay.
//
// The two failure modes are deliberately distinct because they map to
// different close codes on the wire: a missing or empty token is a policy
// violation, while undecodable input is an internal error.
func ParseHandshake(payload []byte) (string, error) {
	var hs Handshake
	if err := json.Unmarshal(payload, &hs); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedHandshake, err)
	}
	if hs.BearerToken == "" {
		return "", ErrTokenMissing
	}
	return hs.BearerToken, nil
}

// Fingerprint returns a short stable digest of a bearer token for logs,
// audit records, and the session registry. The token itself must never be
// logged or persisted.
func Fingerprint(token string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(token))
}
