// Package wstream adapts gorilla/websocket connections to the relay's
// FrameStream interface. Both legs of a session — the accepted client
// connection and the dialed upstream connection — are wrapped by this
// package, so closure semantics and error translation live in one place.
package wstream

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Stream-Gate/Streamgate/internal/domain/relay"
)

// closeWriteTimeout bounds the best-effort close frame write.
const closeWriteTimeout = time.Second

// Stream wraps a *websocket.Conn as a relay.FrameStream.
//
// The relay guarantees at most one concurrent reader and one concurrent
// writer per stream; Close may additionally be called from any goroutine
// because gorilla's WriteControl is safe to use concurrently with other
// writes.
type Stream struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// New wraps an established WebSocket connection.
func New(conn *websocket.Conn) *Stream {
	return &Stream{conn: conn}
}

// ReadFrame blocks until the next text or binary message arrives. Both
// message types are returned as payload bytes; the JSON codec decides
// downstream whether the content is usable. Control frames are handled
// by the library inside ReadMessage.
func (s *Stream) ReadFrame() ([]byte, error) {
	_, payload, err := s.conn.ReadMessage()
	if err != nil {
		return nil, translateErr(err)
	}
	return payload, nil
}

// WriteFrame writes one payload as a text message. The relay only ever
// writes canonical JSON, which is always valid UTF-8 text.
func (s *Stream) WriteFrame(payload []byte) error {
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return translateErr(err)
	}
	return nil
}

// Close sends a normal-closure close frame (best effort) and closes the
// underlying connection. Safe to call multiple times; a close while a
// read is blocked unblocks that read with a closed-stream error.
func (s *Stream) Close() error {
	return s.close(websocket.CloseNormalClosure, "")
}

// CloseWithStatus sends a close frame with the given status code and
// reason before closing the underlying connection. The gatekeeper uses
// this to reject unauthenticated connections with the prescribed codes.
func (s *Stream) CloseWithStatus(code int, reason string) error {
	return s.close(code, reason)
}

func (s *Stream) close(code int, reason string) error {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(closeWriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// SetReadDeadline bounds the next ReadFrame. A zero time clears the
// deadline. Used by the gatekeeper for the first-message wait.
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// RemoteAddr returns the peer's network address for diagnostics.
func (s *Stream) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// translateErr maps transport closure conditions onto the domain's
// closed-stream sentinel so the pump can treat every transport uniformly.
// Timeouts and genuine failures pass through unchanged.
func translateErr(err error) error {
	if err == nil {
		return nil
	}

	// Any close frame ends the stream, whatever the status code; the
	// relay treats normal and abnormal peer closure identically.
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return fmt.Errorf("%w: %v", relay.ErrStreamClosed, closeErr)
	}

	if errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", relay.ErrStreamClosed, err)
	}

	return err
}

// Compile-time interface verification.
var _ relay.FrameStream = (*Stream)(nil)
