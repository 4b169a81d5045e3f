package streamgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultDialTimeout = 10 * time.Second

// Conn is a live session through a Stream Gate relay. It is safe for one
// concurrent reader and one concurrent writer, matching the underlying
// WebSocket connection.
type Conn struct {
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Connect dials the relay, sends the bearer-token handshake, and returns
// a connected session. The token is sent to the relay exactly once and
// never retained by the SDK.
//
// Note that the relay dials its upstream only after receiving the
// handshake; a Connect that returns successfully means the relay
// accepted the WebSocket, not that the upstream is reachable. Upstream
// failures surface on the first Recv.
func Connect(ctx context.Context, url, bearerToken string, opts ...Option) (*Conn, error) {
	cfg := dialConfig{dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.dialTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(dialCtx, url, cfg.header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("relay refused connection (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}

	c := &Conn{ws: ws}
	if err := c.Send(ctx, handshakeFrame(bearerToken, cfg.extras)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("send handshake: %w", err)
	}
	return c, nil
}

// handshakeFrame builds the first-message payload: the bearer token plus
// any extra fields registered via WithHandshakeField.
func handshakeFrame(bearerToken string, extras map[string]any) any {
	if len(extras) == 0 {
		return handshake{BearerToken: bearerToken}
	}
	frame := make(map[string]any, len(extras)+1)
	for k, v := range extras {
		frame[k] = v
	}
	frame["bearer_token"] = bearerToken
	return frame
}

// Send marshals v to JSON and writes it as one text frame. The context
// deadline, if any, bounds the write.
func (c *Conn) Send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return translateErr(err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return translateErr(err)
	}
	return nil
}

// Recv reads the next frame and unmarshals it into v. The context
// deadline, if any, bounds the read. A relay rejection (missing token,
// handshake timeout) surfaces here as a *RejectedError.
func (c *Conn) Recv(ctx context.Context, v any) error {
	data, err := c.RecvRaw(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal frame: %w", err)
	}
	return nil
}

// RecvRaw reads the next frame and returns its raw JSON payload.
func (c *Conn) RecvRaw(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, translateErr(err)
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, translateErr(err)
	}
	return data, nil
}

// Close sends a normal-closure frame and closes the connection.
// Idempotent; later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// translateErr maps transport-level errors onto the SDK error types.
func translateErr(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived:
			return ErrConnClosed
		default:
			return &RejectedError{Code: closeErr.Code, Reason: closeErr.Text}
		}
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrConnClosed
	}
	return err
}
