// Package relay contains the forwarding core of stream-gate: the duplex
// stream abstraction and the per-direction pump that moves normalized JSON
// frames between a client and an upstream connection.
package relay

// FrameStream is one end of a duplex message connection. Implementations
// must support one concurrent reader and one concurrent writer; the relay
// never issues overlapping reads or overlapping writes on the same stream.
//
// Close must be safe to call multiple times and from a goroutine other
// than the reader or writer; a close while a read is blocked must unblock
// that read with a closed-stream error.
type FrameStream interface {
	// ReadFrame blocks until the next complete payload arrives, the
	// stream closes, or the stream fails.
	ReadFrame() ([]byte, error)

	// WriteFrame writes one complete payload.
	WriteFrame(payload []byte) error

	// Close releases the stream.
	Close() error
}
