package termwire

import (
	"context"
	"fmt"

	"github.com/termwiresh/termwire/protocol"
)

// Tab is a handle to one remote tab. It references its parent window
// by id only; navigating to the parent re-queries the multiplexer
// rather than retaining a Window handle, so a dropped Tab never keeps
// window state alive.
type Tab struct {
	remoteHandle

	// ID is the tab's stable identifier.
	ID string

	// WindowID identifies the containing window.
	WindowID string

	// Snapshot is the tab's state when this handle was created.
	Snapshot protocol.TabSnapshot

	conn *Conn
}

func newTab(c *Conn, snap protocol.TabSnapshot) *Tab {
	return &Tab{ID: snap.TabID, WindowID: snap.WindowID, Snapshot: snap, conn: c}
}

// Window re-lists and returns a fresh handle to this tab's containing
// window. The parent having disappeared stales this tab.
func (t *Tab) Window(ctx context.Context) (*Window, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	resp, err := t.conn.listSessions(ctx)
	if err != nil {
		return nil, t.observe(err)
	}

	for _, snap := range resp.Windows {
		if snap.WindowID == t.WindowID {
			t.observe(nil)
			return newWindow(t.conn, snap), nil
		}
	}
	return nil, t.observe(fmt.Errorf("window %s of tab %s: %w", t.WindowID, t.ID, ErrNotFound))
}

// Sessions re-lists the tab's sessions. A tab that has disappeared
// from the listing stales this handle.
func (t *Tab) Sessions(ctx context.Context) ([]*Session, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	resp, err := t.conn.listSessions(ctx)
	if err != nil {
		return nil, t.observe(err)
	}

	for _, w := range resp.Windows {
		for _, snap := range w.Tabs {
			if snap.TabID != t.ID {
				continue
			}
			t.observe(nil)
			sessions := make([]*Session, 0, len(snap.Sessions))
			for _, ss := range snap.Sessions {
				sessions = append(sessions, newSession(t.conn, ss))
			}
			return sessions, nil
		}
	}
	return nil, t.observe(fmt.Errorf("tab %s: %w", t.ID, ErrNotFound))
}

// Activate selects this tab within its window.
func (t *Tab) Activate(ctx context.Context) error {
	if err := t.guard(); err != nil {
		return err
	}
	err := t.conn.activate(ctx, &protocol.ActivateRequest{TabID: &t.ID})
	if err != nil {
		return t.observe(fmt.Errorf("activating tab %s: %w", t.ID, err))
	}
	return t.observe(nil)
}
