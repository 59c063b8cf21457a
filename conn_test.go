package termwire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/termwiresh/termwire/protocol"
)

// respond runs a one-shot scripted remote: it pops the next request
// off the fake transport and answers it via fn. Runs in a goroutine so
// the client call under test can block on its reply.
func respond(t *testing.T, tr *fakeTransport, fn func(req *protocol.ClientMessage) *protocol.ServerMessage) {
	t.Helper()
	go func() {
		req := tr.nextRequest(t)
		resp := fn(req)
		resp.ID = &req.ID
		tr.reply(t, resp)
	}()
}

func newTestConn(t *testing.T) (*Conn, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	c := newConn(tr, testLogger())
	t.Cleanup(func() { c.Close() })
	return c, tr
}

func windowReply(id, title string, tabs ...protocol.TabSnapshot) *protocol.WindowSnapshot {
	return &protocol.WindowSnapshot{WindowID: id, Title: title, Tabs: tabs}
}

func TestCreateWindowThenTab(t *testing.T) {
	c, tr := newTestConn(t)
	ctx := context.Background()

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		if req.CreateWindow == nil {
			t.Errorf("request = %+v, want create_window", req)
		}
		if req.CreateWindow.Profile != nil {
			t.Errorf("profile = %q, want absent for default", *req.CreateWindow.Profile)
		}
		return &protocol.ServerMessage{CreateWindow: &protocol.CreateWindowResponse{
			Status: protocol.StatusOK,
			Window: windowReply("w1", "zsh"),
		}}
	})

	w, err := c.CreateWindow(ctx, "")
	if err != nil {
		t.Fatalf("CreateWindow: %v", err)
	}
	if w.ID != "w1" {
		t.Errorf("window id = %q, want w1", w.ID)
	}
	if w.State() != StateLive {
		t.Errorf("window state after creation = %v, want live", w.State())
	}

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		if req.CreateTab == nil || req.CreateTab.WindowID != "w1" {
			t.Errorf("request = %+v, want create_tab in w1", req)
		}
		if req.CreateTab.Profile == nil || *req.CreateTab.Profile != "dev" {
			t.Errorf("profile = %v, want dev", req.CreateTab.Profile)
		}
		return &protocol.ServerMessage{CreateTab: &protocol.CreateTabResponse{
			Status: protocol.StatusOK,
			Tab:    &protocol.TabSnapshot{TabID: "t2", WindowID: "w1"},
		}}
	})

	tab, err := w.CreateTab(ctx, "dev")
	if err != nil {
		t.Fatalf("CreateTab: %v", err)
	}
	if tab.ID != "t2" || tab.WindowID != "w1" {
		t.Errorf("tab = %+v, want t2 in w1", tab)
	}
}

// A tab arriving with the wrong parent window id is a protocol
// violation, not something to paper over.
func TestCreateTabParentMismatch(t *testing.T) {
	c, tr := newTestConn(t)

	w := newWindow(c, protocol.WindowSnapshot{WindowID: "w1"})

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		return &protocol.ServerMessage{CreateTab: &protocol.CreateTabResponse{
			Status: protocol.StatusOK,
			Tab:    &protocol.TabSnapshot{TabID: "t1", WindowID: "w9"},
		}}
	})

	_, err := w.CreateTab(context.Background(), "")
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("CreateTab with mismatched parent = %v, want *ProtocolError", err)
	}
}

// A not-found rejection stales the handle; the stale handle fails fast
// forever after, without another wire exchange.
func TestStaleHandleNeverHeals(t *testing.T) {
	c, tr := newTestConn(t)
	ctx := context.Background()

	w := newWindow(c, protocol.WindowSnapshot{WindowID: "w-gone"})

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		return &protocol.ServerMessage{CreateTab: &protocol.CreateTabResponse{
			Status: protocol.StatusNotFound,
		}}
	})

	_, err := w.CreateTab(ctx, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("CreateTab on deleted window = %v, want ErrNotFound", err)
	}
	if w.State() != StateStale {
		t.Fatalf("window state = %v, want stale", w.State())
	}

	// No respond registered: a wire exchange would hang, proving the
	// guard short-circuits locally.
	if _, err := w.CreateTab(ctx, ""); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("CreateTab on stale handle = %v, want ErrStaleHandle", err)
	}
	if err := w.Activate(ctx); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Activate on stale handle = %v, want ErrStaleHandle", err)
	}
	if _, err := w.Tabs(ctx); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Tabs on stale handle = %v, want ErrStaleHandle", err)
	}
}

// A window missing from a fresh listing stales the handle even though
// the listing round trip itself succeeded.
func TestWindowMissingFromListing(t *testing.T) {
	c, tr := newTestConn(t)

	w := newWindow(c, protocol.WindowSnapshot{WindowID: "w1"})

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		return &protocol.ServerMessage{ListSessions: &protocol.ListSessionsResponse{
			Status:  protocol.StatusOK,
			Windows: []protocol.WindowSnapshot{{WindowID: "w2"}},
		}}
	})

	_, err := w.Tabs(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Tabs = %v, want ErrNotFound", err)
	}
	if w.State() != StateStale {
		t.Errorf("window state = %v, want stale", w.State())
	}
}

func TestListSessionsIncludesBuried(t *testing.T) {
	c, tr := newTestConn(t)

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		return &protocol.ServerMessage{ListSessions: &protocol.ListSessionsResponse{
			Status: protocol.StatusOK,
			Windows: []protocol.WindowSnapshot{
				*windowReply("w1", "main", protocol.TabSnapshot{
					TabID:    "t1",
					WindowID: "w1",
					Sessions: []protocol.SessionSnapshot{{SessionID: "s1", TabID: "t1"}},
				}),
			},
			BuriedSessions: []protocol.SessionSnapshot{{SessionID: "s-buried"}},
		}}
	})

	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != "s1" || sessions[0].TabID != "t1" {
		t.Errorf("tree session = %+v, want s1 in t1", sessions[0])
	}
	if sessions[1].ID != "s-buried" || sessions[1].TabID != "" {
		t.Errorf("buried session = %+v, want s-buried with no tab", sessions[1])
	}
}

// Tab.Window navigates by id through a fresh listing rather than a
// retained parent pointer.
func TestTabWindowNavigation(t *testing.T) {
	c, tr := newTestConn(t)

	tab := newTab(c, protocol.TabSnapshot{TabID: "t1", WindowID: "w1"})

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		return &protocol.ServerMessage{ListSessions: &protocol.ListSessionsResponse{
			Status:  protocol.StatusOK,
			Windows: []protocol.WindowSnapshot{{WindowID: "w1", Title: "renamed"}},
		}}
	})

	w, err := tab.Window(context.Background())
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if w.ID != "w1" || w.Snapshot.Title != "renamed" {
		t.Errorf("window = %+v, want fresh w1 snapshot", w)
	}
}

func TestSessionVariableAbsentVersusEmpty(t *testing.T) {
	c, tr := newTestConn(t)
	ctx := context.Background()
	s := newSession(c, protocol.SessionSnapshot{SessionID: "s1", TabID: "t1"})

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		if req.GetVariable == nil || req.GetVariable.SessionID == nil || *req.GetVariable.SessionID != "s1" {
			t.Errorf("request = %+v, want get_variable for s1", req)
		}
		return &protocol.ServerMessage{GetVariable: &protocol.GetVariableResponse{
			Status: protocol.StatusOK,
		}}
	})
	if _, ok, err := s.Variable(ctx, "user.project"); err != nil || ok {
		t.Errorf("unset variable = ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	empty := ""
	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		return &protocol.ServerMessage{GetVariable: &protocol.GetVariableResponse{
			Status: protocol.StatusOK,
			Value:  &empty,
		}}
	})
	if v, ok, err := s.Variable(ctx, "user.project"); err != nil || !ok || v != "" {
		t.Errorf("empty variable = %q ok=%v err=%v, want \"\" ok=true err=nil", v, ok, err)
	}
}

func TestGlobalVariable(t *testing.T) {
	c, tr := newTestConn(t)

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		if req.SetVariable == nil || req.SetVariable.SessionID != nil {
			t.Errorf("request = %+v, want global set_variable", req)
		}
		return &protocol.ServerMessage{SetVariable: &protocol.SetVariableResponse{
			Status: protocol.StatusOK,
		}}
	})

	if err := c.SetVariable(context.Background(), "", "theme", "dark"); err != nil {
		t.Fatalf("SetVariable: %v", err)
	}
}

func TestSubscribeDelivery(t *testing.T) {
	c, tr := newTestConn(t)
	ctx := context.Background()

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		if req.Subscribe == nil || !req.Subscribe.Subscribe {
			t.Errorf("request = %+v, want subscribe on", req)
		}
		return &protocol.ServerMessage{Subscribe: &protocol.SubscribeResponse{
			Status: protocol.StatusOK,
		}}
	})

	sub, err := c.Subscribe(ctx, []protocol.NotificationTopic{protocol.TopicSessionTerminated}, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	tr.reply(t, &protocol.ServerMessage{
		Notification: &protocol.Notification{
			Topic:             protocol.TopicSessionTerminated,
			SessionTerminated: &protocol.SessionTerminated{SessionID: "s1"},
		},
	})

	n := <-sub.Notifications()
	if n.SessionTerminated == nil || n.SessionTerminated.SessionID != "s1" {
		t.Errorf("notification = %+v, want session_terminated s1", n)
	}

	// Closing the connection closes the subscription channel, ending a
	// range loop without further coordination.
	c.Close()
	if _, open := <-sub.Notifications(); open {
		t.Error("subscription channel still open after Close")
	}
}

// A multi-topic Subscribe that fails partway rolls back the topics it
// already enabled, so nothing stays subscribed server-side without a
// local Subscription to cancel it.
func TestSubscribePartialFailureRollsBack(t *testing.T) {
	c, tr := newTestConn(t)

	rolledBack := make(chan *protocol.SubscribeRequest, 1)
	go func() {
		// First topic accepted.
		req := tr.nextRequest(t)
		id := req.ID
		tr.reply(t, &protocol.ServerMessage{ID: &id, Subscribe: &protocol.SubscribeResponse{
			Status: protocol.StatusOK,
		}})

		// Second topic rejected.
		req = tr.nextRequest(t)
		id = req.ID
		tr.reply(t, &protocol.ServerMessage{ID: &id, Subscribe: &protocol.SubscribeResponse{
			Status: protocol.StatusFailed,
		}})

		// Rollback unsubscribe for the first topic.
		req = tr.nextRequest(t)
		id = req.ID
		rolledBack <- req.Subscribe
		tr.reply(t, &protocol.ServerMessage{ID: &id, Subscribe: &protocol.SubscribeResponse{
			Status: protocol.StatusOK,
		}})
	}()

	topics := []protocol.NotificationTopic{
		protocol.TopicSessionCreated,
		protocol.TopicSessionTerminated,
	}
	_, err := c.Subscribe(context.Background(), topics, "s1")
	if err == nil {
		t.Fatal("Subscribe succeeded despite a rejected topic")
	}

	select {
	case req := <-rolledBack:
		if req == nil {
			t.Fatal("rollback request carries no subscribe payload")
		}
		if req.Subscribe {
			t.Error("rollback request has subscribe=true, want false")
		}
		if req.Topic != protocol.TopicSessionCreated {
			t.Errorf("rollback topic = %q, want the already-enabled %q",
				req.Topic, protocol.TopicSessionCreated)
		}
		if req.SessionID == nil || *req.SessionID != "s1" {
			t.Errorf("rollback session = %v, want s1", req.SessionID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no rollback unsubscribe was sent")
	}
}

func TestAppErrorCarriesStatus(t *testing.T) {
	c, tr := newTestConn(t)

	respond(t, tr, func(req *protocol.ClientMessage) *protocol.ServerMessage {
		return &protocol.ServerMessage{SendText: &protocol.SendTextResponse{
			Status: protocol.StatusInvalidRequest,
		}}
	})

	err := c.SendText(context.Background(), "s1", "ls\r")
	var ae *AppError
	if !errors.As(err, &ae) {
		t.Fatalf("SendText = %v, want *AppError", err)
	}
	if ae.Status != protocol.StatusInvalidRequest {
		t.Errorf("status = %q, want invalid_request", ae.Status)
	}
}
