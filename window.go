package termwire

import (
	"context"
	"fmt"

	"github.com/termwiresh/termwire/protocol"
)

// Window is a handle to one remote window. The embedded snapshot is
// the window's state at the time the handle was created; it never
// updates in place. Navigation methods re-query the multiplexer.
type Window struct {
	remoteHandle

	// ID is the window's stable identifier.
	ID string

	// Snapshot is the window's state when this handle was created.
	Snapshot protocol.WindowSnapshot

	conn *Conn
}

func newWindow(c *Conn, snap protocol.WindowSnapshot) *Window {
	return &Window{ID: snap.WindowID, Snapshot: snap, conn: c}
}

// CreateTab creates a new tab inside this window. An empty profile
// selects the multiplexer's default profile.
func (w *Window) CreateTab(ctx context.Context, profile string) (*Tab, error) {
	if err := w.guard(); err != nil {
		return nil, err
	}
	tab, err := w.conn.CreateTab(ctx, w.ID, profile)
	if err != nil {
		return nil, w.observe(err)
	}
	if tab.WindowID != w.ID {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("tab %s reports parent window %s, created in %s",
				tab.ID, tab.WindowID, w.ID),
		}
	}
	w.observe(nil)
	return tab, nil
}

// Tabs re-lists the window's tabs. A window that has disappeared from
// the listing stales this handle.
func (w *Window) Tabs(ctx context.Context) ([]*Tab, error) {
	if err := w.guard(); err != nil {
		return nil, err
	}
	resp, err := w.conn.listSessions(ctx)
	if err != nil {
		return nil, w.observe(err)
	}

	for _, snap := range resp.Windows {
		if snap.WindowID != w.ID {
			continue
		}
		w.observe(nil)
		tabs := make([]*Tab, 0, len(snap.Tabs))
		for _, ts := range snap.Tabs {
			tabs = append(tabs, newTab(w.conn, ts))
		}
		return tabs, nil
	}
	return nil, w.observe(fmt.Errorf("window %s: %w", w.ID, ErrNotFound))
}

// Activate brings this window to the front.
func (w *Window) Activate(ctx context.Context) error {
	if err := w.guard(); err != nil {
		return err
	}
	front := true
	err := w.conn.activate(ctx, &protocol.ActivateRequest{
		WindowID:   &w.ID,
		OrderFront: &front,
	})
	if err != nil {
		return w.observe(fmt.Errorf("activating window %s: %w", w.ID, err))
	}
	return w.observe(nil)
}
