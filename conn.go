// Package termwire is a client for a terminal multiplexer's control
// API. It speaks a framed duplex protocol over the multiplexer's local
// control socket (or a WebSocket endpoint), multiplexing concurrent
// requests over one connection and mirroring the remote window / tab /
// session hierarchy as lightweight handles.
//
// A Conn is safe to share: any number of goroutines and object-model
// handles may issue requests through it concurrently. Waiting happens
// only on each caller's own reply; a single background loop reads the
// transport.
package termwire

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/termwiresh/termwire/internal/credstore"
	"github.com/termwiresh/termwire/internal/transport"
	"github.com/termwiresh/termwire/protocol"
)

// libraryVersion identifies this client in the handshake, mirroring
// the header the multiplexer logs for connected clients.
const libraryVersion = "go termwire 1.0"

// AuthMode selects how Connect authenticates.
type AuthMode int

const (
	// AuthAuto uses pre-authorized mode when a cookie or key is
	// available (options, environment, or credential cache) and falls
	// back to prompt mode otherwise.
	AuthAuto AuthMode = iota
	// AuthPrompt always asks for user approval, ignoring credentials.
	AuthPrompt
	// AuthPreauthorized requires a cookie or key and never prompts.
	AuthPreauthorized
)

// Environment variables the multiplexer sets for its child processes.
// A program launched inside a session can connect without prompting.
const (
	EnvCookie = "TERMMUX_COOKIE"
	EnvKey    = "TERMMUX_KEY"
)

// Options configures Connect. The zero value connects to the
// multiplexer's default control socket in AuthAuto mode.
type Options struct {
	// SocketPath overrides the default control socket location.
	SocketPath string

	// URL connects over WebSocket instead of the control socket:
	// ws://, wss://, or ws+unix:///path/to.sock. Takes precedence over
	// SocketPath.
	URL string

	Auth   AuthMode
	Cookie string
	Key    string

	// ClientName appears in the multiplexer's approval prompt and
	// client listings. Defaults to "termwire".
	ClientName string

	// CredentialCache is the path to the SQLite cookie cache. Empty
	// disables caching: prompt approval is then needed every run.
	CredentialCache string

	// OnAuthPending is invoked when the multiplexer is waiting for the
	// user to approve this connection. May be nil.
	OnAuthPending func(message string)

	Logger *slog.Logger
}

// Conn is the shared handle to one live connection. All object-model
// handles reference a Conn; it is destroyed only by an explicit Close
// or by the transport reporting closure.
type Conn struct {
	d        *dispatcher
	subs     *subscriptionSet
	logger   *slog.Logger
	clientID string
}

// Connect dials the multiplexer, authenticates, and starts the
// connection's read loop. The caller must Close the returned Conn.
func Connect(ctx context.Context, opts *Options) (*Conn, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ClientName == "" {
		o.ClientName = "termwire"
	}

	endpoint := o.URL
	if endpoint == "" {
		if o.SocketPath == "" {
			path, err := transport.DefaultSocketPath()
			if err != nil {
				return nil, err
			}
			o.SocketPath = path
		}
		endpoint = o.SocketPath
	}

	cookie, key := resolveCredentials(&o, endpoint)

	mode := transport.AuthPrompt
	switch o.Auth {
	case AuthPrompt:
		cookie, key = "", ""
	case AuthPreauthorized:
		mode = transport.AuthPreauthorized
	case AuthAuto:
		if cookie != "" || key != "" {
			mode = transport.AuthPreauthorized
		}
	}

	clientID := uuid.NewString()
	tr, grant, err := transport.Dial(ctx, transport.Options{
		SocketPath:     o.SocketPath,
		URL:            o.URL,
		Mode:           mode,
		Cookie:         cookie,
		Key:            key,
		ClientName:     o.ClientName,
		ClientID:       clientID,
		LibraryVersion: libraryVersion,
		OnAuthPending:  o.OnAuthPending,
		Logger:         o.Logger,
	})
	if err != nil {
		// ConnectError and AuthError already carry endpoint context.
		return nil, err
	}

	if grant.Cookie != "" && o.CredentialCache != "" {
		saveGrant(&o, endpoint, grant.Cookie)
	}

	subs := newSubscriptionSet(o.Logger)
	return &Conn{
		d:        newDispatcher(tr, o.Logger, subs),
		subs:     subs,
		logger:   o.Logger,
		clientID: clientID,
	}, nil
}

// resolveCredentials picks the cookie/key to present, in priority
// order: explicit options, environment, credential cache.
func resolveCredentials(o *Options, endpoint string) (cookie, key string) {
	cookie, key = o.Cookie, o.Key
	if cookie == "" {
		cookie = os.Getenv(EnvCookie)
	}
	if key == "" {
		key = os.Getenv(EnvKey)
	}
	if cookie != "" || key != "" || o.CredentialCache == "" {
		return cookie, key
	}

	store, err := credstore.Open(o.CredentialCache)
	if err != nil {
		o.Logger.Warn("credential cache unavailable", "path", o.CredentialCache, "error", err)
		return "", ""
	}
	defer store.Close()

	record, err := store.Lookup(endpoint)
	if err != nil {
		o.Logger.Warn("credential cache lookup failed", "endpoint", endpoint, "error", err)
		return "", ""
	}
	if record != nil {
		return record.Cookie, ""
	}
	return "", ""
}

// saveGrant caches a cookie issued during the handshake. Failures are
// logged, not fatal: the connection itself is already authenticated.
func saveGrant(o *Options, endpoint, cookie string) {
	store, err := credstore.Open(o.CredentialCache)
	if err != nil {
		o.Logger.Warn("credential cache unavailable", "path", o.CredentialCache, "error", err)
		return
	}
	defer store.Close()

	if err := store.Save(endpoint, cookie, o.ClientName); err != nil {
		o.Logger.Warn("caching issued cookie failed", "endpoint", endpoint, "error", err)
	}
}

// newConn wires a Conn directly over a transport, skipping Dial. Used
// by tests to script the remote side.
func newConn(tr transport.Transport, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	subs := newSubscriptionSet(logger)
	return &Conn{
		d:        newDispatcher(tr, logger, subs),
		subs:     subs,
		logger:   logger,
		clientID: uuid.NewString(),
	}
}

// Close tears down the background read loop and closes the transport.
// Pending requests fail with ErrConnectionClosed.
func (c *Conn) Close() error {
	c.d.close()
	return nil
}

// ClientID is the identity this connection presented in its handshake.
func (c *Conn) ClientID() string { return c.clientID }

// roundTrip submits one request and awaits its matching reply.
func (c *Conn) roundTrip(ctx context.Context, msg *protocol.ClientMessage) (*protocol.ServerMessage, error) {
	pr, err := c.d.submit(ctx, msg)
	if err != nil {
		return nil, err
	}
	return pr.await(ctx)
}

// ---------------------------------------------------------------------------
// Typed operations
// ---------------------------------------------------------------------------

// CreateWindow creates a new window holding a single tab. An empty
// profile selects the multiplexer's default profile.
func (c *Conn) CreateWindow(ctx context.Context, profile string) (*Window, error) {
	req := &protocol.CreateWindowRequest{}
	if profile != "" {
		req.Profile = &profile
	}

	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{CreateWindow: req})
	if err != nil {
		return nil, err
	}
	resp := reply.CreateWindow
	if resp == nil {
		return nil, &ProtocolError{Reason: "reply missing create_window payload"}
	}
	if err := statusErr(resp.Status); err != nil {
		return nil, err
	}
	if resp.Window == nil {
		return nil, &ProtocolError{Reason: "create_window reply missing window snapshot"}
	}
	w := newWindow(c, *resp.Window)
	w.markLive()
	return w, nil
}

// CreateTab creates a new tab in the window identified by windowID.
// Prefer Window.CreateTab, which also maintains the parent handle's
// lifecycle state.
func (c *Conn) CreateTab(ctx context.Context, windowID, profile string) (*Tab, error) {
	req := &protocol.CreateTabRequest{WindowID: windowID}
	if profile != "" {
		req.Profile = &profile
	}

	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{CreateTab: req})
	if err != nil {
		return nil, err
	}
	resp := reply.CreateTab
	if resp == nil {
		return nil, &ProtocolError{Reason: "reply missing create_tab payload"}
	}
	if err := statusErr(resp.Status); err != nil {
		return nil, fmt.Errorf("creating tab in window %s: %w", windowID, err)
	}
	if resp.Tab == nil {
		return nil, &ProtocolError{Reason: "create_tab reply missing tab snapshot"}
	}
	tab := newTab(c, *resp.Tab)
	tab.markLive()
	return tab, nil
}

// SendText writes text into a session as if typed. Include "\r" to
// run a command.
func (c *Conn) SendText(ctx context.Context, sessionID, text string) error {
	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{
		SendText: &protocol.SendTextRequest{SessionID: sessionID, Text: text},
	})
	if err != nil {
		return err
	}
	resp := reply.SendText
	if resp == nil {
		return &ProtocolError{Reason: "reply missing send_text payload"}
	}
	if err := statusErr(resp.Status); err != nil {
		return fmt.Errorf("sending text to session %s: %w", sessionID, err)
	}
	return nil
}

// listSessions performs the listing round trip shared by ListWindows,
// ListSessions, and the object model's re-list navigation.
func (c *Conn) listSessions(ctx context.Context) (*protocol.ListSessionsResponse, error) {
	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{
		ListSessions: &protocol.ListSessionsRequest{},
	})
	if err != nil {
		return nil, err
	}
	resp := reply.ListSessions
	if resp == nil {
		return nil, &ProtocolError{Reason: "reply missing list_sessions payload"}
	}
	if err := statusErr(resp.Status); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListWindows returns a fresh handle for every open window.
func (c *Conn) ListWindows(ctx context.Context) ([]*Window, error) {
	resp, err := c.listSessions(ctx)
	if err != nil {
		return nil, err
	}
	windows := make([]*Window, 0, len(resp.Windows))
	for _, snap := range resp.Windows {
		windows = append(windows, newWindow(c, snap))
	}
	return windows, nil
}

// ListSessions returns a fresh handle for every session, including
// buried sessions not currently shown in any window.
func (c *Conn) ListSessions(ctx context.Context) ([]*Session, error) {
	resp, err := c.listSessions(ctx)
	if err != nil {
		return nil, err
	}

	var sessions []*Session
	for _, w := range resp.Windows {
		for _, tab := range w.Tabs {
			for _, snap := range tab.Sessions {
				sessions = append(sessions, newSession(c, snap))
			}
		}
	}
	for _, snap := range resp.BuriedSessions {
		sessions = append(sessions, newSession(c, snap))
	}
	return sessions, nil
}

// GetBuffer fetches the screen contents of a session. numLines > 0
// additionally includes that much scrollback.
func (c *Conn) GetBuffer(ctx context.Context, sessionID string, numLines int) ([]string, error) {
	req := &protocol.GetBufferRequest{SessionID: sessionID}
	if numLines > 0 {
		req.NumLines = &numLines
	}

	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{GetBuffer: req})
	if err != nil {
		return nil, err
	}
	resp := reply.GetBuffer
	if resp == nil {
		return nil, &ProtocolError{Reason: "reply missing get_buffer payload"}
	}
	if err := statusErr(resp.Status); err != nil {
		return nil, fmt.Errorf("fetching buffer of session %s: %w", sessionID, err)
	}
	return resp.Lines, nil
}

// activate performs the focus round trip shared by the object model's
// Activate methods.
func (c *Conn) activate(ctx context.Context, req *protocol.ActivateRequest) error {
	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{Activate: req})
	if err != nil {
		return err
	}
	resp := reply.Activate
	if resp == nil {
		return &ProtocolError{Reason: "reply missing activate payload"}
	}
	return statusErr(resp.Status)
}

// GetVariable reads a named variable. sessionID == "" reads a global
// variable. ok is false when the variable is unset, which is distinct
// from an empty value.
func (c *Conn) GetVariable(ctx context.Context, sessionID, name string) (value string, ok bool, err error) {
	req := &protocol.GetVariableRequest{Name: name}
	if sessionID != "" {
		req.SessionID = &sessionID
	}

	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{GetVariable: req})
	if err != nil {
		return "", false, err
	}
	resp := reply.GetVariable
	if resp == nil {
		return "", false, &ProtocolError{Reason: "reply missing get_variable payload"}
	}
	if err := statusErr(resp.Status); err != nil {
		return "", false, fmt.Errorf("reading variable %q: %w", name, err)
	}
	if resp.Value == nil {
		return "", false, nil
	}
	return *resp.Value, true, nil
}

// SetVariable writes a named variable. sessionID == "" writes a
// global variable.
func (c *Conn) SetVariable(ctx context.Context, sessionID, name, value string) error {
	req := &protocol.SetVariableRequest{Name: name, Value: value}
	if sessionID != "" {
		req.SessionID = &sessionID
	}

	reply, err := c.roundTrip(ctx, &protocol.ClientMessage{SetVariable: req})
	if err != nil {
		return err
	}
	resp := reply.SetVariable
	if resp == nil {
		return &ProtocolError{Reason: "reply missing set_variable payload"}
	}
	if err := statusErr(resp.Status); err != nil {
		return fmt.Errorf("writing variable %q: %w", name, err)
	}
	return nil
}

// Subscribe registers for push notifications on the given topics,
// optionally narrowed to one session. The returned subscription's
// channel closes when the subscription is cancelled or the connection
// dies.
func (c *Conn) Subscribe(ctx context.Context, topics []protocol.NotificationTopic, sessionID string) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("termwire: subscribe requires at least one topic")
	}

	var enabled []protocol.NotificationTopic
	for _, topic := range topics {
		req := &protocol.SubscribeRequest{Topic: topic, Subscribe: true}
		if sessionID != "" {
			id := sessionID
			req.SessionID = &id
		}
		reply, err := c.roundTrip(ctx, &protocol.ClientMessage{Subscribe: req})
		if err != nil {
			return nil, err
		}
		resp := reply.Subscribe
		if resp == nil {
			c.disableTopics(ctx, enabled, sessionID)
			return nil, &ProtocolError{Reason: "reply missing subscribe payload"}
		}
		if err := statusErr(resp.Status); err != nil {
			// Roll back topics already enabled so a partial failure
			// leaves no orphaned server-side subscriptions.
			c.disableTopics(ctx, enabled, sessionID)
			return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		enabled = append(enabled, topic)
	}

	sub := c.subs.add(topics, sessionID)
	if sub == nil {
		return nil, ErrConnectionClosed
	}
	return sub, nil
}

// disableTopics sends best-effort unsubscribes for topics already
// enabled when a later step of the same Subscribe call failed.
// Failures are logged, not returned: the caller already has the
// original error.
func (c *Conn) disableTopics(ctx context.Context, topics []protocol.NotificationTopic, sessionID string) {
	for _, topic := range topics {
		req := &protocol.SubscribeRequest{Topic: topic, Subscribe: false}
		if sessionID != "" {
			id := sessionID
			req.SessionID = &id
		}
		if _, err := c.roundTrip(ctx, &protocol.ClientMessage{Subscribe: req}); err != nil {
			c.logger.Warn("rolling back partial subscription failed", "topic", topic, "error", err)
			return
		}
	}
}

// Unsubscribe cancels a subscription: the multiplexer stops pushing
// its topics and the subscription's channel closes. Local teardown
// happens even when the server round trip fails.
func (c *Conn) Unsubscribe(ctx context.Context, sub *Subscription) error {
	defer c.subs.remove(sub.id)

	var firstErr error
	for topic := range sub.topics {
		req := &protocol.SubscribeRequest{Topic: topic, Subscribe: false}
		if sub.sessionID != "" {
			id := sub.sessionID
			req.SessionID = &id
		}
		if _, err := c.roundTrip(ctx, &protocol.ClientMessage{Subscribe: req}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
