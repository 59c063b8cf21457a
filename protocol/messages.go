package protocol

import "encoding/json"

// Status is the application-level result code carried in every
// response message.
type Status string

const (
	StatusOK             Status = "ok"
	StatusNotFound       Status = "not_found"
	StatusInvalidRequest Status = "invalid_request"
	StatusFailed         Status = "failed"
)

// AuthStatus is the result of the authentication handshake.
type AuthStatus string

const (
	AuthAccepted AuthStatus = "accepted"
	AuthDenied   AuthStatus = "denied"
	// AuthPending means the server is waiting for the user to approve
	// the connection. More hello responses follow on the same channel.
	AuthPending AuthStatus = "pending"
)

// ---------------------------------------------------------------------------
// Envelopes
// ---------------------------------------------------------------------------

// ClientMessage is the envelope for every client-originated message.
// ID is the correlation id; the matching reply carries the same id.
// Exactly one request field must be set.
type ClientMessage struct {
	ID uint64 `json:"id"`

	Hello        *HelloRequest        `json:"hello,omitempty"`
	CreateWindow *CreateWindowRequest `json:"create_window,omitempty"`
	CreateTab    *CreateTabRequest    `json:"create_tab,omitempty"`
	SendText     *SendTextRequest     `json:"send_text,omitempty"`
	ListSessions *ListSessionsRequest `json:"list_sessions,omitempty"`
	GetBuffer    *GetBufferRequest    `json:"get_buffer,omitempty"`
	Activate     *ActivateRequest     `json:"activate,omitempty"`
	GetVariable  *GetVariableRequest  `json:"get_variable,omitempty"`
	SetVariable  *SetVariableRequest  `json:"set_variable,omitempty"`
	Subscribe    *SubscribeRequest    `json:"subscribe,omitempty"`
}

// ServerMessage is the envelope for every server-originated message.
// A reply carries the originating request's id; an unsolicited
// notification carries no id and a non-nil Notification field.
type ServerMessage struct {
	ID *uint64 `json:"id,omitempty"`

	Hello        *HelloResponse        `json:"hello,omitempty"`
	CreateWindow *CreateWindowResponse `json:"create_window,omitempty"`
	CreateTab    *CreateTabResponse    `json:"create_tab,omitempty"`
	SendText     *SendTextResponse     `json:"send_text,omitempty"`
	ListSessions *ListSessionsResponse `json:"list_sessions,omitempty"`
	GetBuffer    *GetBufferResponse    `json:"get_buffer,omitempty"`
	Activate     *ActivateResponse     `json:"activate,omitempty"`
	GetVariable  *GetVariableResponse  `json:"get_variable,omitempty"`
	SetVariable  *SetVariableResponse  `json:"set_variable,omitempty"`
	Subscribe    *SubscribeResponse    `json:"subscribe,omitempty"`

	Notification *Notification `json:"notification,omitempty"`
}

// EncodeClient serializes a client envelope to a frame payload.
func EncodeClient(m *ClientMessage) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeClient parses a frame payload into a client envelope.
func DecodeClient(payload []byte) (*ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeServer serializes a server envelope to a frame payload.
func EncodeServer(m *ServerMessage) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeServer parses a frame payload into a server envelope.
func DecodeServer(payload []byte) (*ServerMessage, error) {
	var m ServerMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

// HelloID is the correlation id reserved for the handshake hello.
// Application requests use ids strictly greater than HelloID.
const HelloID uint64 = 1

// HelloRequest opens the authentication handshake. Cookie or Key are
// set in pre-authorized mode; in prompt mode both are absent and the
// server asks the user for approval.
type HelloRequest struct {
	ClientName     string  `json:"client_name"`
	ClientID       string  `json:"client_id"`
	LibraryVersion string  `json:"library_version"`
	Cookie         *string `json:"cookie,omitempty"`
	Key            *string `json:"key,omitempty"`
}

// HelloResponse reports the handshake outcome. On acceptance the
// server may issue a cookie the client can reuse to skip the prompt
// next time.
type HelloResponse struct {
	Status  AuthStatus `json:"status"`
	Cookie  *string    `json:"cookie,omitempty"`
	Message string     `json:"message,omitempty"`
}

// ---------------------------------------------------------------------------
// Requests and responses
// ---------------------------------------------------------------------------

// CreateWindowRequest creates a new window holding a single tab.
type CreateWindowRequest struct {
	Profile *string `json:"profile,omitempty"`
	Command *string `json:"command,omitempty"`
}

type CreateWindowResponse struct {
	Status Status          `json:"status"`
	Window *WindowSnapshot `json:"window,omitempty"`
}

// CreateTabRequest creates a new tab inside an existing window.
type CreateTabRequest struct {
	WindowID string  `json:"window_id"`
	Profile  *string `json:"profile,omitempty"`
	Command  *string `json:"command,omitempty"`
}

type CreateTabResponse struct {
	Status Status       `json:"status"`
	Tab    *TabSnapshot `json:"tab,omitempty"`
}

// SendTextRequest writes text into a session as if typed by the user.
type SendTextRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type SendTextResponse struct {
	Status Status `json:"status"`
}

// ListSessionsRequest asks for the full window/tab/session tree plus
// any buried sessions (sessions not currently in a window).
type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Status         Status            `json:"status"`
	Windows        []WindowSnapshot  `json:"windows,omitempty"`
	BuriedSessions []SessionSnapshot `json:"buried_sessions,omitempty"`
}

// GetBufferRequest fetches the visible screen contents of a session.
// NumLines limits how much scrollback is included; absent means the
// visible grid only.
type GetBufferRequest struct {
	SessionID string `json:"session_id"`
	NumLines  *int   `json:"num_lines,omitempty"`
}

type GetBufferResponse struct {
	Status Status   `json:"status"`
	Lines  []string `json:"lines,omitempty"`
}

// ActivateRequest brings a window, tab, or session to the front.
// Exactly one target field should be set.
type ActivateRequest struct {
	SessionID  *string `json:"session_id,omitempty"`
	TabID      *string `json:"tab_id,omitempty"`
	WindowID   *string `json:"window_id,omitempty"`
	OrderFront *bool   `json:"order_front,omitempty"`
}

type ActivateResponse struct {
	Status Status `json:"status"`
}

// GetVariableRequest reads a named variable. SessionID absent means a
// global variable.
type GetVariableRequest struct {
	SessionID *string `json:"session_id,omitempty"`
	Name      string  `json:"name"`
}

// GetVariableResponse carries the variable value. A nil Value means
// the variable is unset, which is distinct from an empty string.
type GetVariableResponse struct {
	Status Status  `json:"status"`
	Value  *string `json:"value,omitempty"`
}

// SetVariableRequest writes a named variable.
type SetVariableRequest struct {
	SessionID *string `json:"session_id,omitempty"`
	Name      string  `json:"name"`
	Value     string  `json:"value"`
}

type SetVariableResponse struct {
	Status Status `json:"status"`
}

// SubscribeRequest turns server-push notifications for a topic on or
// off. SessionID restricts session-scoped topics to one session.
type SubscribeRequest struct {
	Topic     NotificationTopic `json:"topic"`
	SessionID *string           `json:"session_id,omitempty"`
	Subscribe bool              `json:"subscribe"`
}

type SubscribeResponse struct {
	Status Status `json:"status"`
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// WindowSnapshot is a point-in-time copy of a window's remote state.
// Snapshots are immutable value objects; a fresher view is obtained by
// listing again, never by mutating a snapshot in place.
type WindowSnapshot struct {
	WindowID string        `json:"window_id"`
	Title    string        `json:"title"`
	Number   *int          `json:"number,omitempty"`
	Frame    *Rect         `json:"frame,omitempty"`
	Tabs     []TabSnapshot `json:"tabs,omitempty"`
}

// TabSnapshot is a point-in-time copy of a tab's remote state.
// WindowID is the identifier of the containing window.
type TabSnapshot struct {
	TabID    string            `json:"tab_id"`
	WindowID string            `json:"window_id"`
	Title    string            `json:"title"`
	Sessions []SessionSnapshot `json:"sessions,omitempty"`
}

// SessionSnapshot is a point-in-time copy of a session's remote state.
// TabID is empty for buried sessions.
type SessionSnapshot struct {
	SessionID string    `json:"session_id"`
	TabID     string    `json:"tab_id,omitempty"`
	Title     string    `json:"title"`
	Grid      *GridSize `json:"grid,omitempty"`
}

// Rect is a window frame in screen coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GridSize is a session's character grid dimensions.
type GridSize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// NotificationTopic identifies a class of unsolicited server push
// messages. Subscriptions are keyed by topic.
type NotificationTopic string

const (
	TopicVariableChanged   NotificationTopic = "variable_changed"
	TopicLayoutChanged     NotificationTopic = "layout_changed"
	TopicSessionCreated    NotificationTopic = "session_created"
	TopicSessionTerminated NotificationTopic = "session_terminated"
)

// Notification is an unsolicited server push message. It carries no
// correlation id; the payload field matching Topic is set.
type Notification struct {
	Topic NotificationTopic `json:"topic"`

	VariableChanged   *VariableChange    `json:"variable_changed,omitempty"`
	LayoutChanged     *LayoutChange      `json:"layout_changed,omitempty"`
	SessionCreated    *SessionSnapshot   `json:"session_created,omitempty"`
	SessionTerminated *SessionTerminated `json:"session_terminated,omitempty"`
}

// VariableChange reports a variable's new value. SessionID absent
// means a global variable. A nil Value means the variable was unset.
type VariableChange struct {
	SessionID *string `json:"session_id,omitempty"`
	Name      string  `json:"name"`
	Value     *string `json:"value,omitempty"`
}

// LayoutChange carries the full window tree after a layout mutation.
type LayoutChange struct {
	Windows []WindowSnapshot `json:"windows,omitempty"`
}

// SessionTerminated reports that a session no longer exists.
type SessionTerminated struct {
	SessionID string `json:"session_id"`
}
