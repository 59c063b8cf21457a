// Package transport owns the physical duplex connection to the
// multiplexer's control socket. It exposes whole-frame send/receive as
// the only primitives and performs the authentication handshake during
// Dial.
//
// Failure semantics: the first I/O error on send or receive marks the
// transport permanently closed. Every operation issued afterwards fails
// fast with ErrClosed; there is no hidden reconnection. Reconnecting is
// an explicit, caller-driven Dial.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrClosed is returned by every operation on a transport that has
// been closed, either explicitly or by an earlier I/O failure.
var ErrClosed = errors.New("transport: connection closed")

// Subprotocol is the WebSocket subprotocol negotiated with the
// multiplexer's control endpoint.
const Subprotocol = "termmux-control.v1"

// Transport is one authenticated duplex channel. Send and Receive
// operate on whole frame payloads only; partial frames never cross
// this boundary. Send is safe for concurrent use; Receive must have at
// most one concurrent caller.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// AuthMode selects how Dial authenticates with the multiplexer.
type AuthMode int

const (
	// AuthPrompt sends a bare hello and waits for the user to approve
	// the connection in the multiplexer's UI. The wait is unbounded
	// unless the caller's context imposes a deadline.
	AuthPrompt AuthMode = iota
	// AuthPreauthorized presents a cookie or key in the hello; no
	// approval round trip is required.
	AuthPreauthorized
)

// ConnectError reports a failure to reach the multiplexer's endpoint.
// It covers the dial phase only; once the endpoint answers, handshake
// failures surface as AuthError instead.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s (is the multiplexer running with its control API enabled?): %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError reports an authentication failure. Denied is true when the
// multiplexer (or its user) explicitly rejected the connection, false
// for handshake protocol failures.
type AuthError struct {
	Denied  bool
	Message string
}

func (e *AuthError) Error() string {
	if e.Denied {
		return fmt.Sprintf("authentication denied: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Options configures Dial. Exactly one of SocketPath or URL selects
// the endpoint; URL wins when both are set.
type Options struct {
	// SocketPath is the multiplexer's local control socket, spoken to
	// with the length-delimited frame protocol.
	SocketPath string

	// URL is a WebSocket endpoint: ws:// or wss:// for TCP, or
	// ws+unix:///path/to.sock for WebSocket framing over a local
	// socket.
	URL string

	Mode   AuthMode
	Cookie string // pre-authorized credential issued by a prior grant
	Key    string // pre-authorized credential configured in the multiplexer

	// ClientName and ClientID identify this client in the hello and in
	// the multiplexer's approval prompt.
	ClientName     string
	ClientID       string
	LibraryVersion string

	// OnAuthPending is invoked when the multiplexer signals that it is
	// waiting for the user to approve the connection. May be nil.
	OnAuthPending func(message string)

	Logger *slog.Logger
}

// Grant carries credentials issued by the multiplexer on acceptance.
// A non-empty Cookie can be presented in AuthPreauthorized mode to
// skip the approval prompt on future connections.
type Grant struct {
	Cookie string
}

// DefaultSocketPath returns the multiplexer's conventional control
// socket location under the user's home directory.
func DefaultSocketPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".termmux", "control.sock"), nil
}

// Dial opens the endpoint, upgrades it to the framed duplex protocol,
// and performs the authentication handshake. On success the returned
// transport is live and authenticated. A denied or errored handshake
// closes the connection; the transport is not usable afterwards.
func Dial(ctx context.Context, opts Options) (Transport, *Grant, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	tr, err := dialRaw(ctx, &opts)
	if err != nil {
		return nil, nil, err
	}

	grant, err := handshake(ctx, tr, &opts)
	if err != nil {
		tr.Close()
		return nil, nil, err
	}
	return tr, grant, nil
}

func dialRaw(ctx context.Context, opts *Options) (Transport, error) {
	if opts.URL != "" {
		return dialWebSocket(ctx, opts)
	}

	path := opts.SocketPath
	if path == "" {
		var err error
		path, err = DefaultSocketPath()
		if err != nil {
			return nil, err
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &ConnectError{Endpoint: path, Err: err}
	}
	return NewSocket(conn), nil
}

// splitUnixURL parses a ws+unix:// URL into the socket path. Returns
// ok=false when the URL uses a different scheme.
func splitUnixURL(url string) (path string, ok bool) {
	const prefix = "ws+unix://"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
