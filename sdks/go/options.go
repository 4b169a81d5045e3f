package streamgate

import (
	"net/http"
	"time"
)

// Option is a functional option for configuring a connection.
type Option func(*dialConfig)

// dialConfig collects the dial-time settings applied by Options.
type dialConfig struct {
	dialTimeout time.Duration
	header      http.Header
	extras      map[string]any
}

// WithDialTimeout bounds the WebSocket connect handshake with the relay.
// If not set, defaults to 10 seconds.
func WithDialTimeout(d time.Duration) Option {
	return func(c *dialConfig) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithHeader adds an HTTP header to the relay connect request. Useful
// for routing through proxies or load balancers that key on headers.
func WithHeader(key, value string) Option {
	return func(c *dialConfig) {
		if c.header == nil {
			c.header = http.Header{}
		}
		c.header.Add(key, value)
	}
}

// WithHandshakeField adds an extra top-level field to the handshake
// frame. The relay ignores fields it does not know, so extras are only
// meaningful to relays deployed with custom handshake handling. The
// bearer_token field cannot be overridden.
func WithHandshakeField(key string, value any) Option {
	return func(c *dialConfig) {
		if c.extras == nil {
			c.extras = map[string]any{}
		}
		c.extras[key] = value
	}
}
