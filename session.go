package termwire

import (
	"context"
	"fmt"

	"github.com/termwiresh/termwire/protocol"
)

// Session is a handle to one remote session, the unit that actually
// runs a shell. A buried session has an empty TabID.
type Session struct {
	remoteHandle

	// ID is the session's stable identifier.
	ID string

	// TabID identifies the containing tab; empty for buried sessions.
	TabID string

	// Snapshot is the session's state when this handle was created.
	Snapshot protocol.SessionSnapshot

	conn *Conn
}

func newSession(c *Conn, snap protocol.SessionSnapshot) *Session {
	return &Session{ID: snap.SessionID, TabID: snap.TabID, Snapshot: snap, conn: c}
}

// Tab re-lists and returns a fresh handle to this session's containing
// tab. Fails for buried sessions, which have no tab.
func (s *Session) Tab(ctx context.Context) (*Tab, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if s.TabID == "" {
		return nil, fmt.Errorf("session %s is buried and has no tab", s.ID)
	}
	resp, err := s.conn.listSessions(ctx)
	if err != nil {
		return nil, s.observe(err)
	}

	for _, w := range resp.Windows {
		for _, snap := range w.Tabs {
			if snap.TabID == s.TabID {
				s.observe(nil)
				return newTab(s.conn, snap), nil
			}
		}
	}
	return nil, s.observe(fmt.Errorf("tab %s of session %s: %w", s.TabID, s.ID, ErrNotFound))
}

// SendText writes text into this session as if typed. Include "\r" to
// run a command.
func (s *Session) SendText(ctx context.Context, text string) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.observe(s.conn.SendText(ctx, s.ID, text))
}

// Buffer fetches this session's screen contents. numLines > 0
// additionally includes that much scrollback.
func (s *Session) Buffer(ctx context.Context, numLines int) ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	lines, err := s.conn.GetBuffer(ctx, s.ID, numLines)
	if err != nil {
		return nil, s.observe(err)
	}
	s.observe(nil)
	return lines, nil
}

// Activate focuses this session, bringing its tab and window forward.
func (s *Session) Activate(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	front := true
	err := s.conn.activate(ctx, &protocol.ActivateRequest{
		SessionID:  &s.ID,
		OrderFront: &front,
	})
	if err != nil {
		return s.observe(fmt.Errorf("activating session %s: %w", s.ID, err))
	}
	return s.observe(nil)
}

// Variable reads a session-scoped variable. ok is false when the
// variable is unset, which is distinct from an empty value.
func (s *Session) Variable(ctx context.Context, name string) (value string, ok bool, err error) {
	if err := s.guard(); err != nil {
		return "", false, err
	}
	value, ok, err = s.conn.GetVariable(ctx, s.ID, name)
	if err != nil {
		return "", false, s.observe(err)
	}
	s.observe(nil)
	return value, ok, nil
}

// SetVariable writes a session-scoped variable.
func (s *Session) SetVariable(ctx context.Context, name, value string) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.observe(s.conn.SetVariable(ctx, s.ID, name, value))
}
