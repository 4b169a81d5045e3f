// Package outbound defines the outbound port interfaces for connecting
// to the upstream streaming service.
package outbound

import (
	"context"

	"github.com/Stream-Gate/Streamgate/internal/domain/relay"
)

// UpstreamDialer is the outbound port for opening the upstream leg of a
// session. Adapters implement this over concrete transports.
type UpstreamDialer interface {
	// Dial opens a duplex stream to the upstream endpoint, attaching the
	// bearer credential to the connect handshake. The returned stream is
	// owned by the caller, which must close it on every exit path.
	Dial(ctx context.Context, bearerToken string) (relay.FrameStream, error)
}
