// Package frame provides the JSON frame codec shared by both legs of the
// stream-gate relay.
//
// Every payload that crosses the relay is decoded and re-encoded through
// this package. The re-encode is a deliberate normalization pass, not a
// byte copy: it guarantees that only well-formed JSON reaches the peer and
// gives both directions a single canonical wire form.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrTrailingData indicates extra content after the first JSON value.
var ErrTrailingData = errors.New("trailing data after JSON value")

// Direction indicates the flow direction of a frame through the relay.
type Direction int

const (
	// ClientToUpstream indicates a frame flowing from the downstream
	// client to the upstream service.
	ClientToUpstream Direction = iota
	// UpstreamToClient indicates a frame flowing from the upstream
	// service back to the downstream client.
	UpstreamToClient
)

// String returns the string representation of the Direction.
func (d Direction) String() string {
	switch d {
	case ClientToUpstream:
		return "client->upstream"
	case UpstreamToClient:
		return "upstream->client"
	default:
		return "unknown"
	}
}

// Frame wraps one relayed payload with relay metadata.
// It stores both the original bytes and the canonical re-encoding.
type Frame struct {
	// Raw contains the payload exactly as read from the source stream.
	Raw []byte

	// Canonical contains the normalized re-encoding that is written to
	// the destination stream.
	Canonical []byte

	// Direction indicates which leg of the relay the frame crossed.
	Direction Direction

	// Timestamp records when the frame was read from the source.
	Timestamp time.Time
}

// Decode parses raw as a single JSON value.
//
// Numbers are decoded as json.Number so that integer precision survives
// the decode/re-encode round trip. Trailing non-whitespace content after
// the first value is rejected, matching strict one-value-per-frame
// semantics.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, ErrTrailingData
	}
	return v, nil
}

// Normalize decodes raw and re-encodes it to its canonical textual form.
// It returns an error if raw is not exactly one well-formed JSON value;
// callers treat that as a per-frame condition, not a stream failure.
func Normalize(raw []byte) ([]byte, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("re-encode frame: %w", err)
	}
	return out, nil
}

// Wrap decodes raw, normalizes it, and returns a Frame stamped with the
// direction and current time. For payloads that fail to decode, callers
// drop the frame; Wrap never preserves undecodable bytes.
func Wrap(raw []byte, dir Direction) (*Frame, error) {
	canonical, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Raw:       raw,
		Canonical: canonical,
		Direction: dir,
		Timestamp: time.Now(),
	}, nil
}

// Equal reports whether a and b decode to structurally equal JSON values.
// Byte-level differences in whitespace or key order do not affect the
// result. Undecodable inputs are never equal to anything.
func Equal(a, b []byte) bool {
	av, err := Decode(a)
	if err != nil {
		return false
	}
	bv, err := Decode(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
