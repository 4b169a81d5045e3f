// Package inbound defines the inbound port interfaces for the relay core.
// The CLI drives these interfaces; inbound adapters implement them.
package inbound

import (
	"context"
)

// RelayServer is the inbound port for the relay listener.
// The WebSocket gateway adapter implements this interface.
type RelayServer interface {
	// Start binds the listener and serves connections.
	// Blocks until context is cancelled or an error occurs.
	// Returns nil on graceful shutdown, error on failure.
	Start(ctx context.Context) error

	// Close shuts down the listener and cleans up resources.
	Close() error
}
