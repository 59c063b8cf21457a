package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// WS is a Transport over a WebSocket connection. One binary message
// carries one frame payload; the frame header of the raw socket
// protocol is replaced by WebSocket's own framing.
type WS struct {
	conn *websocket.Conn

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// NewWS wraps an established WebSocket connection.
func NewWS(conn *websocket.Conn) *WS {
	return &WS{conn: conn}
}

func dialWebSocket(ctx context.Context, opts *Options) (Transport, error) {
	dialOpts := &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
		HTTPHeader: http.Header{
			"X-Termmux-Library-Version": []string{opts.LibraryVersion},
		},
	}

	wsURL := opts.URL
	if path, ok := splitUnixURL(opts.URL); ok {
		// WebSocket framing over a local socket: dial the socket
		// ourselves and let the HTTP client ride on it. The URL host is
		// a placeholder the multiplexer ignores.
		dialOpts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", path)
				},
			},
		}
		wsURL = "ws://localhost/"
	}

	conn, _, err := websocket.Dial(ctx, wsURL, dialOpts)
	if err != nil {
		return nil, &ConnectError{Endpoint: opts.URL, Err: err}
	}
	// Remove the default read limit so large listing replies are not
	// rejected.
	conn.SetReadLimit(-1)
	return NewWS(conn), nil
}

func (t *WS) fail(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.closeErr = cause
	t.conn.Close(websocket.StatusInternalError, "transport failure")
}

func (t *WS) closedErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		return nil
	}
	if t.closeErr != nil && t.closeErr != ErrClosed {
		return fmt.Errorf("%w: %v", ErrClosed, t.closeErr)
	}
	return ErrClosed
}

// Send writes one frame payload as a single binary message. The
// websocket library serializes concurrent writers internally.
func (t *WS) Send(ctx context.Context, payload []byte) error {
	if err := t.closedErr(); err != nil {
		return err
	}
	if err := t.conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
		t.fail(err)
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

// Receive reads the next binary message. Text messages are a protocol
// violation and close the transport.
func (t *WS) Receive(ctx context.Context) ([]byte, error) {
	if err := t.closedErr(); err != nil {
		return nil, err
	}
	msgType, data, err := t.conn.Read(ctx)
	if err != nil {
		t.fail(err)
		return nil, fmt.Errorf("receiving frame: %w", err)
	}
	if msgType != websocket.MessageBinary {
		err := fmt.Errorf("unexpected websocket message type: %d", msgType)
		t.fail(err)
		return nil, err
	}
	return data, nil
}

// Close sends a normal closure message and marks the transport closed.
func (t *WS) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close(websocket.StatusNormalClosure, "")
}
