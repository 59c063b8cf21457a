package termwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/termwiresh/termwire/internal/transport"
	"github.com/termwiresh/termwire/protocol"
)

// result is what a pending request resolves to: a reply or an error,
// never both.
type result struct {
	msg *protocol.ServerMessage
	err error
}

// dispatcher owns the only mutable shared state of a connection: the
// correlation-id counter and the table of in-flight requests. All
// access is funneled through submit, cancel, and the single read loop;
// nothing else may write to the transport.
type dispatcher struct {
	tr     transport.Transport
	logger *slog.Logger
	subs   *subscriptionSet

	// writeMu spans id allocation and the frame write, so the order of
	// ids on the wire matches submission order.
	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan result
	closed   bool
	closeErr error

	// done is closed when the read loop exits.
	done chan struct{}
}

func newDispatcher(tr transport.Transport, logger *slog.Logger, subs *subscriptionSet) *dispatcher {
	d := &dispatcher{
		tr:      tr,
		logger:  logger,
		subs:    subs,
		nextID:  protocol.HelloID, // handshake consumed HelloID
		pending: make(map[uint64]chan result),
		done:    make(chan struct{}),
	}
	go d.readLoop()
	return d
}

// submit assigns the next correlation id, registers the request as
// pending, and writes it to the transport. The returned pendingReply
// resolves when the matching reply arrives or the connection dies.
func (d *dispatcher) submit(ctx context.Context, msg *protocol.ClientMessage) (*pendingReply, error) {
	d.writeMu.Lock()

	d.mu.Lock()
	if d.closed {
		err := d.closeErr
		d.mu.Unlock()
		d.writeMu.Unlock()
		return nil, err
	}
	d.nextID++
	id := d.nextID
	ch := make(chan result, 1)
	d.pending[id] = ch
	d.mu.Unlock()

	msg.ID = id
	payload, err := protocol.EncodeClient(msg)
	if err != nil {
		d.writeMu.Unlock()
		d.cancel(id)
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	err = d.tr.Send(ctx, payload)
	d.writeMu.Unlock()
	if err != nil {
		// A send failure kills the transport; fail every pending caller
		// rather than just this one.
		d.shutdown(err)
		d.mu.Lock()
		err = d.closeErr
		d.mu.Unlock()
		return nil, err
	}

	return &pendingReply{d: d, id: id, ch: ch}, nil
}

// cancel abandons a pending request. A reply arriving afterwards finds
// no table entry and is discarded.
func (d *dispatcher) cancel(id uint64) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// readLoop is the sole reader of the transport. It routes replies to
// their waiting callers and notifications to the subscription sink,
// and tears the connection down on the first protocol or transport
// failure.
func (d *dispatcher) readLoop() {
	defer close(d.done)
	for {
		payload, err := d.tr.Receive(context.Background())
		if err != nil {
			d.shutdown(err)
			return
		}

		c := protocol.Classify(payload)
		switch c.Kind {
		case protocol.KindReply:
			d.deliver(c.ID, c.Message)
		case protocol.KindNotification:
			d.subs.publish(c.Message.Notification)
		case protocol.KindMalformed:
			d.shutdown(&ProtocolError{Reason: "malformed frame", Err: c.Err})
			return
		}
	}
}

// deliver resolves the pending request matching id. A reply with no
// matching entry is benign: the caller cancelled, or the remote side
// answered twice. It is logged and dropped, never fatal.
func (d *dispatcher) deliver(id uint64, msg *protocol.ServerMessage) {
	d.mu.Lock()
	ch, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Warn("dropping reply with no matching request", "correlation_id", id)
		return
	}
	ch <- result{msg: msg}
}

// shutdown moves the dispatcher to its terminal closed state: every
// pending caller fails with the closure error, the subscription sink
// is closed, and future submits fail fast. The first cause wins.
func (d *dispatcher) shutdown(cause error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.closeErr = wrapClose(cause)
	pending := d.pending
	d.pending = make(map[uint64]chan result)
	closeErr := d.closeErr
	d.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: closeErr}
	}
	d.subs.closeAll()
	d.tr.Close()
}

// close tears down the connection and waits for the read loop to exit.
func (d *dispatcher) close() {
	d.shutdown(nil)
	<-d.done
}

// wrapClose folds a closure cause into ErrConnectionClosed so callers
// can match with errors.Is while keeping the cause inspectable.
func wrapClose(cause error) error {
	if cause == nil || errors.Is(cause, transport.ErrClosed) || errors.Is(cause, ErrConnectionClosed) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
}

// pendingReply is the caller-side awaitable for one in-flight request.
type pendingReply struct {
	d  *dispatcher
	id uint64
	ch <-chan result
}

// await blocks until the reply arrives, the connection dies, or ctx
// expires. On expiry the pending entry is unregistered; a reply that
// arrives later is discarded by the read loop.
func (p *pendingReply) await(ctx context.Context) (*protocol.ServerMessage, error) {
	select {
	case r := <-p.ch:
		return r.msg, r.err
	case <-ctx.Done():
		p.d.cancel(p.id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (correlation id %d)", ErrTimeout, p.id)
		}
		return nil, ctx.Err()
	}
}
