package termwire

import "sync/atomic"

// HandleState is the lifecycle state of a Window, Tab, or Session
// handle.
//
// A handle starts Fresh: created from a snapshot but not yet proven by
// a successful round trip. The first successful operation moves it to
// Live. An operation the multiplexer rejects with "not found" moves it
// to Stale, and a stale handle never heals: once the remote object is
// observed gone, every further operation fails fast with ErrStaleHandle
// without touching the wire. List again to get fresh handles.
type HandleState int32

const (
	StateFresh HandleState = iota
	StateLive
	StateStale
)

func (s HandleState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLive:
		return "live"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// remoteHandle is the lifecycle core embedded in every object-model
// handle. State transitions are monotonic: Fresh may become Live or
// Stale, Live may become Stale, Stale is terminal.
type remoteHandle struct {
	state atomic.Int32
}

// State returns the handle's current lifecycle state.
func (h *remoteHandle) State() HandleState {
	return HandleState(h.state.Load())
}

// markLive records that the remote object's existence was just proven,
// as with a handle returned by the create call that made the object.
func (h *remoteHandle) markLive() {
	h.state.CompareAndSwap(int32(StateFresh), int32(StateLive))
}

// guard is called before any remote operation. It fails fast on a
// stale handle so callers never issue requests for objects already
// observed gone.
func (h *remoteHandle) guard() error {
	if h.State() == StateStale {
		return ErrStaleHandle
	}
	return nil
}

// observe records the outcome of a remote operation: success proves
// the object exists (Live), a not-found rejection proves it is gone
// (Stale). Any other error leaves the state alone, because it says
// nothing about the remote object. Returns err unchanged for chaining.
func (h *remoteHandle) observe(err error) error {
	switch {
	case err == nil:
		// compare-and-swap so a racing Stale observation is not undone
		h.state.CompareAndSwap(int32(StateFresh), int32(StateLive))
	case isNotFound(err):
		h.state.Store(int32(StateStale))
	}
	return err
}
