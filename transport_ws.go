package scclient

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport is the shipped transport, a thin adapter over
// gorilla/websocket. It holds no protocol knowledge; socket.go decides
// what to send and how to interpret what comes back.
type wsTransport struct {
	opts dialOptions

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func newWSTransport(opts dialOptions) *wsTransport {
	return &wsTransport{opts: opts, done: make(chan struct{})}
}

func (t *wsTransport) dial(ctx context.Context, rawURL string, header http.Header) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  t.opts.handshakeTimeout,
		EnableCompression: t.opts.perMessageDeflate,
	}
	if t.opts.tlsSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if header == nil {
		header = http.Header{}
	}
	if t.opts.userAgent != "" {
		header.Set("User-Agent", t.opts.userAgent)
	}

	conn, _, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return &SCError{Kind: ProtocolError, Cause: err, Timestamp: time.Now()}
	}
	conn.SetCompressionLevel(6)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *wsTransport) readLoop(onMessage func(data []byte, binary bool), onClose func(error)) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		onClose(ErrNotConnected)
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				onClose(nil)
			default:
				onClose(err)
			}
			return
		}
		onMessage(data, msgType == websocket.BinaryMessage)
	}
}

func (t *wsTransport) writeMessage(data []byte, binary bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}
	return t.conn.WriteMessage(msgType, data)
}

func (t *wsTransport) close(code int) error {
	select {
	case <-t.done:
		return nil
	default:
		close(t.done)
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), deadline)
	return conn.Close()
}
