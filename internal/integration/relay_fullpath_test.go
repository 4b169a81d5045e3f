package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	streamgate "github.com/stream-gate/sdk-go"
)

// TestRelayForwardsFramesEndToEnd runs a session through the full stack:
// SDK client -> gateway -> fake upstream, with the credential attached
// on the upstream leg and JSON frames normalized in flight.
func TestRelayForwardsFramesEndToEnd(t *testing.T) {
	upstreamURL, headers := echoUpstream(t)
	g := startGateway(t, upstreamURL, gatewayOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := streamgate.Connect(ctx, g.wsURL(), "abc123")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Send(ctx, map[string]any{"x": 1}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var echoed map[string]any
	if err := conn.Recv(ctx, &echoed); err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if echoed["x"].(float64) != 1 {
		t.Errorf("echoed frame = %v, want x=1", echoed)
	}

	select {
	case h := <-headers:
		if got := h.Get("Authorization"); got != "Bearer abc123" {
			t.Errorf("upstream Authorization = %q, want Bearer abc123", got)
		}
		if got := h.Get("Content-Type"); got != "application/json" {
			t.Errorf("upstream Content-Type = %q, want application/json", got)
		}
	default:
		t.Error("upstream never saw the connect handshake")
	}
}

// TestRelayPreservesMessageOrder pushes a burst of frames through one
// session and verifies they come back in order.
func TestRelayPreservesMessageOrder(t *testing.T) {
	upstreamURL, _ := echoUpstream(t)
	g := startGateway(t, upstreamURL, gatewayOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := streamgate.Connect(ctx, g.wsURL(), "abc123")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	const n = 25
	for i := 0; i < n; i++ {
		if err := conn.Send(ctx, map[string]any{"seq": i}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		var got map[string]any
		if err := conn.Recv(ctx, &got); err != nil {
			t.Fatalf("Recv %d failed: %v", i, err)
		}
		if int(got["seq"].(float64)) != i {
			t.Fatalf("frame %d arrived as seq=%v", i, got["seq"])
		}
	}
}

// TestRelayNormalizesFrames verifies that whitespace in client JSON is
// gone by the time the upstream sees the frame.
func TestRelayNormalizesFrames(t *testing.T) {
	frames := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frames <- string(data)
		_, _, _ = ws.ReadMessage()
	})
	addr := freeAddr(t)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	g := startGateway(t, "ws://"+addr+"/", gatewayOptions{})

	// Raw dial so the frame bytes are exactly as written, spaces and all.
	conn := rawDial(t, g.wsURL())
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"bearer_token": "abc123"}`)); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(" {\"x\": 1,\n \"y\": [2, 3]} ")); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	select {
	case frame := <-frames:
		if frame != `{"x":1,"y":[2,3]}` {
			t.Errorf("upstream frame = %q, want compact JSON", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("upstream never received the frame")
	}
}

// TestRelayRejectsMissingToken covers the policy close: valid JSON
// handshake without a usable token ends with 1008.
func TestRelayRejectsMissingToken(t *testing.T) {
	upstreamURL, _ := echoUpstream(t)
	g := startGateway(t, upstreamURL, gatewayOptions{})

	for _, handshake := range []string{`{}`, `{"bearer_token":""}`, `{"other":"field"}`} {
		conn := rawDial(t, g.wsURL())
		if err := conn.WriteMessage(websocket.TextMessage, []byte(handshake)); err != nil {
			t.Fatalf("write handshake: %v", err)
		}
		wantCloseCode(t, conn, websocket.ClosePolicyViolation, "Bearer token missing")
	}
}

// TestRelayRejectsMalformedHandshake covers the error close: a first
// message that is not JSON ends with 1011.
func TestRelayRejectsMalformedHandshake(t *testing.T) {
	upstreamURL, _ := echoUpstream(t)
	g := startGateway(t, upstreamURL, gatewayOptions{})

	conn := rawDial(t, g.wsURL())
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json at all")); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	wantCloseCode(t, conn, websocket.CloseInternalServerErr, "Internal error")
}

// TestRelayHandshakeTimeout covers the silent-client close: no first
// message within the timeout ends with 1011.
func TestRelayHandshakeTimeout(t *testing.T) {
	upstreamURL, _ := echoUpstream(t)
	g := startGateway(t, upstreamURL, gatewayOptions{handshakeTimeout: 100 * time.Millisecond})

	conn := rawDial(t, g.wsURL())
	wantCloseCode(t, conn, websocket.CloseInternalServerErr, "Internal error")
}

// TestRelayUpstreamCloseReachesClient verifies teardown propagation from
// the upstream side.
func TestRelayUpstreamCloseReachesClient(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_, _, _ = ws.ReadMessage()
	})
	addr := freeAddr(t)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	g := startGateway(t, "ws://"+addr+"/", gatewayOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := streamgate.Connect(ctx, g.wsURL(), "abc123")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	var got map[string]any
	err = conn.Recv(ctx, &got)
	if err == nil {
		t.Fatal("Recv succeeded after upstream close")
	}
	if !errors.Is(err, streamgate.ErrConnClosed) {
		t.Errorf("Recv error = %v, want ErrConnClosed", err)
	}
}

// TestRelaySessionAccounting verifies the session registry fills and
// drains around a session's lifetime.
func TestRelaySessionAccounting(t *testing.T) {
	upstreamURL, _ := echoUpstream(t)
	g := startGateway(t, upstreamURL, gatewayOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := streamgate.Connect(ctx, g.wsURL(), "abc123")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Round-trip one frame so the session is surely paired.
	if err := conn.Send(ctx, map[string]any{"ping": true}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	var pong map[string]any
	if err := conn.Recv(ctx, &pong); err != nil {
		t.Fatalf("Recv failed: %v", err)
	}

	if n := waitForSessionCount(t, g, 1); n != 1 {
		t.Fatalf("live sessions = %d, want 1", n)
	}

	_ = conn.Close()

	if n := waitForSessionCount(t, g, 0); n != 0 {
		t.Errorf("live sessions after close = %d, want 0", n)
	}

	stats := g.stats.GetStats()
	if stats.Connections == 0 || stats.SessionsStarted == 0 {
		t.Errorf("stats not recorded: %+v", stats)
	}
}

func waitForSessionCount(t *testing.T, g *gateway, want int) int {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	n := -1
	for time.Now().Before(deadline) {
		var err error
		n, err = g.sessions.Count(context.Background())
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n == want {
			return n
		}
		time.Sleep(10 * time.Millisecond)
	}
	return n
}
