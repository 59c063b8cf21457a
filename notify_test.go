package termwire

import (
	"fmt"
	"testing"

	"github.com/termwiresh/termwire/protocol"
)

func variableChanged(sessionID, name, value string) *protocol.Notification {
	n := &protocol.Notification{
		Topic:           protocol.TopicVariableChanged,
		VariableChanged: &protocol.VariableChange{Name: name, Value: &value},
	}
	if sessionID != "" {
		n.VariableChanged.SessionID = &sessionID
	}
	return n
}

func TestSubscriptionTopicFilter(t *testing.T) {
	ss := newSubscriptionSet(testLogger())
	sub := ss.add([]protocol.NotificationTopic{protocol.TopicSessionTerminated}, "")

	ss.publish(variableChanged("s1", "title", "x"))
	ss.publish(&protocol.Notification{
		Topic:             protocol.TopicSessionTerminated,
		SessionTerminated: &protocol.SessionTerminated{SessionID: "s1"},
	})

	select {
	case n := <-sub.Notifications():
		if n.Topic != protocol.TopicSessionTerminated {
			t.Errorf("delivered topic = %q, want session_terminated", n.Topic)
		}
	default:
		t.Fatal("matching notification was not delivered")
	}
	select {
	case n := <-sub.Notifications():
		t.Errorf("unexpected extra delivery: %+v", n)
	default:
	}
}

func TestSubscriptionSessionFilter(t *testing.T) {
	ss := newSubscriptionSet(testLogger())
	sub := ss.add([]protocol.NotificationTopic{protocol.TopicVariableChanged}, "s1")

	ss.publish(variableChanged("s2", "title", "other"))
	ss.publish(variableChanged("s1", "title", "mine"))
	// Global variable changes carry no session, so a session-scoped
	// subscriber still sees them when subscribed to the topic.
	ss.publish(variableChanged("", "global", "g"))

	n := <-sub.Notifications()
	if n.VariableChanged.SessionID == nil || *n.VariableChanged.SessionID != "s1" {
		t.Errorf("first delivery = %+v, want s1 change", n)
	}
	n = <-sub.Notifications()
	if n.VariableChanged.Name != "global" {
		t.Errorf("second delivery = %+v, want global change", n)
	}
	select {
	case n := <-sub.Notifications():
		t.Errorf("unexpected extra delivery: %+v", n)
	default:
	}
}

// A subscriber that stops draining loses notifications instead of
// blocking the publisher.
func TestSlowSubscriberDrops(t *testing.T) {
	ss := newSubscriptionSet(testLogger())
	sub := ss.add([]protocol.NotificationTopic{protocol.TopicVariableChanged}, "")

	for i := 0; i < subscriptionBuffer+10; i++ {
		ss.publish(variableChanged("s1", "n", fmt.Sprint(i)))
	}

	delivered := 0
	for {
		select {
		case <-sub.Notifications():
			delivered++
			continue
		default:
		}
		break
	}
	if delivered != subscriptionBuffer {
		t.Errorf("delivered %d notifications, want exactly the buffer size %d",
			delivered, subscriptionBuffer)
	}
}

func TestRemoveClosesChannel(t *testing.T) {
	ss := newSubscriptionSet(testLogger())
	sub := ss.add([]protocol.NotificationTopic{protocol.TopicLayoutChanged}, "")

	ss.remove(sub.id)
	if _, open := <-sub.Notifications(); open {
		t.Error("channel still open after remove")
	}

	// Publishing after removal must not panic on the closed channel.
	ss.publish(&protocol.Notification{Topic: protocol.TopicLayoutChanged})
}

func TestCloseAll(t *testing.T) {
	ss := newSubscriptionSet(testLogger())
	a := ss.add([]protocol.NotificationTopic{protocol.TopicLayoutChanged}, "")
	b := ss.add([]protocol.NotificationTopic{protocol.TopicSessionCreated}, "")

	ss.closeAll()
	ss.closeAll() // idempotent

	for _, sub := range []*Subscription{a, b} {
		if _, open := <-sub.Notifications(); open {
			t.Error("channel still open after closeAll")
		}
	}

	if sub := ss.add([]protocol.NotificationTopic{protocol.TopicLayoutChanged}, ""); sub != nil {
		t.Error("add after closeAll returned a live subscription")
	}
}
