// Package streamgate provides a Go SDK for connecting through a Stream
// Gate relay.
//
// Stream Gate pairs a client WebSocket connection with a fixed upstream
// streaming endpoint. The client opens a WebSocket to the relay, sends a
// single JSON handshake message carrying a bearer token, and then
// exchanges JSON frames with the upstream through the relay. This SDK
// wraps that protocol: Connect performs the dial and handshake, and the
// returned Conn sends and receives JSON values.
//
// Quick start:
//
//	conn, err := streamgate.Connect(ctx, "ws://localhost:8080/", token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Send(ctx, map[string]any{"setup": setup}); err != nil {
//	    log.Fatal(err)
//	}
//	var reply map[string]any
//	if err := conn.Recv(ctx, &reply); err != nil {
//	    var rej *streamgate.RejectedError
//	    if errors.As(err, &rej) {
//	        fmt.Printf("relay rejected the session: %d %s\n", rej.Code, rej.Reason)
//	    }
//	}
package streamgate

// handshake is the first message sent on every connection. The relay
// extracts the bearer token and forwards nothing from this message to
// the upstream.
type handshake struct {
	BearerToken string `json:"bearer_token"`
}
