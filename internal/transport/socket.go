package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/termwiresh/termwire/protocol"
)

// Socket is a Transport over a stream connection using the
// length-delimited frame protocol. Writes are serialized internally so
// concurrent senders never interleave partial frames.
type Socket struct {
	conn    net.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// NewSocket wraps an established stream connection. The caller hands
// over ownership; Close closes the underlying connection.
func NewSocket(conn net.Conn) *Socket {
	return &Socket{conn: conn}
}

// fail marks the transport permanently closed with the given cause.
// The first cause wins; later failures keep the original error.
func (t *Socket) fail(cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.closeErr = cause
	t.conn.Close()
}

// closedErr returns the fail-fast error if the transport is closed,
// nil otherwise.
func (t *Socket) closedErr() error {
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

// Send writes one complete frame. Safe for concurrent use.
func (t *Socket) Send(ctx context.Context, payload []byte) error {
	if err := t.closedErr(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}

	err := protocol.WriteFrame(t.conn, &protocol.Frame{Type: protocol.FrameEnvelope, Payload: payload})
	if err != nil {
		t.fail(err)
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

// Receive reads the next complete frame payload. A clean end of stream
// closes the transport and reports ErrClosed.
func (t *Socket) Receive(ctx context.Context) ([]byte, error) {
	if err := t.closedErr(); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetReadDeadline(deadline)
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}

	f, err := protocol.ReadFrame(t.conn)
	if err != nil {
		t.fail(err)
		return nil, fmt.Errorf("receiving frame: %w", err)
	}
	if f == nil {
		// Remote end hung up.
		t.fail(nil)
		return nil, ErrClosed
	}
	return f.Payload, nil
}

// Close marks the transport closed and closes the underlying
// connection. Safe to call more than once.
func (t *Socket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
