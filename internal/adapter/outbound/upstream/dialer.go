// Package upstream provides the WebSocket dialer for the upstream leg of
// a relay session.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Stream-Gate/Streamgate/internal/adapter/wstream"
	"github.com/Stream-Gate/Streamgate/internal/domain/auth"
	"github.com/Stream-Gate/Streamgate/internal/domain/relay"
	"github.com/Stream-Gate/Streamgate/internal/port/outbound"
)

// defaultDialTimeout bounds the upstream connect handshake.
const defaultDialTimeout = 10 * time.Second

// Dialer opens the upstream connection for a session, attaching the
// bearer credential extracted from the client handshake. It implements
// the outbound.UpstreamDialer interface.
type Dialer struct {
	url            string
	headerTemplate string
	contentType    string
	dialTimeout    time.Duration
	ws             *websocket.Dialer
	logger         *slog.Logger
}

// Option is a functional option for configuring the Dialer.
type Option func(*Dialer)

// WithDialTimeout bounds the connect handshake. Zero keeps the default.
func WithDialTimeout(d time.Duration) Option {
	return func(dl *Dialer) {
		if d > 0 {
			dl.dialTimeout = d
		}
	}
}

// WithLogger sets the logger for dial diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(dl *Dialer) {
		dl.logger = logger
	}
}

// NewDialer creates a dialer for the fixed upstream endpoint. The
// authHeaderTemplate must contain exactly one %s verb, which receives the
// bearer token (validated at config load).
func NewDialer(url, authHeaderTemplate, contentType string, opts ...Option) *Dialer {
	d := &Dialer{
		url:            url,
		headerTemplate: authHeaderTemplate,
		contentType:    contentType,
		dialTimeout:    defaultDialTimeout,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ws = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.dialTimeout,
	}

	return d
}

// Dial opens the upstream stream with the credential and content-type
// headers attached to the connect handshake. The bearer token is used
// here exactly once and never retained.
func (d *Dialer) Dial(ctx context.Context, bearerToken string) (relay.FrameStream, error) {
	header := http.Header{}
	header.Set("Content-Type", d.contentType)
	header.Set("Authorization", fmt.Sprintf(d.headerTemplate, bearerToken))

	d.logger.Debug("dialing upstream",
		"url", d.url,
		"token_fingerprint", auth.Fingerprint(bearerToken),
	)

	dialCtx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	defer cancel()

	conn, resp, err := d.ws.DialContext(dialCtx, d.url, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("upstream handshake rejected (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial upstream %s: %w", d.url, err)
	}

	return wstream.New(conn), nil
}

// Compile-time interface verification.
var _ outbound.UpstreamDialer = (*Dialer)(nil)
