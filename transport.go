package scclient

import (
	"context"
	"net/http"
	"time"
)

// transport is the internal interface between the connection state machine
// (socket.go) and the wire. The only implementation shipped is wsTransport
// (transport_ws.go), which Socket.dial always constructs; the tests run
// against a real httptest WebSocket server rather than a fake transport.
type transport interface {
	// dial opens the connection and blocks until it is established or ctx
	// is done.
	dial(ctx context.Context, rawURL string, header http.Header) error

	// readLoop blocks reading messages until the connection closes or
	// close is called, invoking onMessage for each inbound message and
	// onClose exactly once when the loop exits. Callers run it in its own
	// goroutine.
	readLoop(onMessage func(data []byte, binary bool), onClose func(error))

	// writeMessage sends one message, text or binary depending on the
	// active codec.
	writeMessage(data []byte, binary bool) error

	// close sends a close frame carrying code (best effort) and tears
	// down the underlying connection.
	close(code int) error
}

// WebSocket close codes this package sends itself (RFC 6455 §7.4).
const (
	closeNormal        = 1000
	closeProtocolError = 1002
)

// dialOptions collects the transport-level knobs ConnectOptions exposes,
// kept separate from ConnectOptions itself so transport_ws.go does not
// depend on the whole option set.
type dialOptions struct {
	tlsSkipVerify    bool
	perMessageDeflate bool
	handshakeTimeout time.Duration
	userAgent        string
}

var defaultDialOptions = dialOptions{
	handshakeTimeout: 10 * time.Second,
}
