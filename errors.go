package termwire

import (
	"errors"
	"fmt"

	"github.com/termwiresh/termwire/internal/transport"
	"github.com/termwiresh/termwire/protocol"
)

var (
	// ErrConnectionClosed reports that the underlying transport has
	// ended. Every pending request fails with it, and every request
	// submitted afterwards fails fast without touching the wire.
	ErrConnectionClosed = errors.New("termwire: connection closed")

	// ErrTimeout reports that a caller-imposed deadline elapsed before
	// the reply arrived. The remote operation may still complete; its
	// result is discarded.
	ErrTimeout = errors.New("termwire: deadline elapsed awaiting reply")

	// ErrNotFound reports that the remote entity referenced by a handle
	// no longer exists. The handle transitions to stale and must not be
	// reused; re-list from the connection to obtain a fresh handle.
	ErrNotFound = errors.New("termwire: entity not found")

	// ErrStaleHandle reports an operation on a handle whose remote
	// counterpart is confirmed gone.
	ErrStaleHandle = errors.New("termwire: stale handle")
)

// ConnectError reports a failure to reach the multiplexer's endpoint
// before any handshake took place, typically because the multiplexer
// is not running or its control API is disabled.
type ConnectError = transport.ConnectError

// AuthError reports an explicit authentication denial or an
// unsupported/failed handshake.
type AuthError = transport.AuthError

// ProtocolError reports a malformed frame or a reply whose shape does
// not match the request that caused it.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("termwire: protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("termwire: protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AppError reports that the multiplexer rejected an operation for a
// domain reason, such as invalid parameters.
type AppError struct {
	Status  protocol.Status
	Message string
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("termwire: operation failed (%s): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("termwire: operation failed (%s)", e.Status)
}

// isNotFound reports whether an operation failed because the remote
// entity does not exist, which is the only failure that stales a
// handle.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// statusErr maps an application-level status code to the domain error
// taxonomy. StatusOK maps to nil.
func statusErr(status protocol.Status) error {
	switch status {
	case protocol.StatusOK:
		return nil
	case protocol.StatusNotFound:
		return ErrNotFound
	default:
		return &AppError{Status: status}
	}
}
