package relay

import (
	"errors"
	"io"
	"net"
)

// ErrStreamClosed indicates that a stream reached the end of its life:
// the peer sent a close, the transport reported EOF, or the stream was
// closed locally. Stream adapters wrap their transport-specific closure
// conditions in this sentinel so the pump can treat them uniformly.
var ErrStreamClosed = errors.New("stream closed")

// IsClosed reports whether err represents normal stream closure rather
// than a forwarding failure.
func IsClosed(err error) bool {
	return errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed)
}
