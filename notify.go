package termwire

import (
	"log/slog"
	"sync"

	"github.com/termwiresh/termwire/protocol"
)

// Subscription receives unsolicited push notifications matching its
// filters. Notifications are delivered on a buffered channel; a
// subscriber that falls behind loses notifications rather than
// stalling the connection's read loop.
//
// The channel is closed when the subscription is cancelled or the
// connection dies, so a range loop over Notifications terminates on
// its own.
type Subscription struct {
	id        uint64
	topics    map[protocol.NotificationTopic]bool
	sessionID string // empty matches every session
	ch        chan *protocol.Notification
	set       *subscriptionSet

	closeOnce sync.Once
}

// Notifications returns the delivery channel.
func (s *Subscription) Notifications() <-chan *protocol.Notification { return s.ch }

// matches reports whether a notification passes this subscription's
// topic and session filters.
func (s *Subscription) matches(n *protocol.Notification) bool {
	if len(s.topics) > 0 && !s.topics[n.Topic] {
		return false
	}
	if s.sessionID == "" {
		return true
	}
	switch {
	case n.VariableChanged != nil && n.VariableChanged.SessionID != nil:
		return *n.VariableChanged.SessionID == s.sessionID
	case n.SessionCreated != nil:
		return n.SessionCreated.SessionID == s.sessionID
	case n.SessionTerminated != nil:
		return n.SessionTerminated.SessionID == s.sessionID
	default:
		// Topic has no session affinity (layout changes, globals).
		return true
	}
}

// subscriptionBuffer is how many undelivered notifications a
// subscriber may accumulate before older ones are dropped.
const subscriptionBuffer = 256

// subscriptionSet tracks active subscriptions and fans incoming
// notifications out to the ones whose filters match.
type subscriptionSet struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func newSubscriptionSet(logger *slog.Logger) *subscriptionSet {
	return &subscriptionSet{
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

// add registers a subscription. Returns nil when the set is already
// closed (connection gone).
func (ss *subscriptionSet) add(topics []protocol.NotificationTopic, sessionID string) *Subscription {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil
	}

	ss.nextID++
	sub := &Subscription{
		id:        ss.nextID,
		topics:    make(map[protocol.NotificationTopic]bool, len(topics)),
		sessionID: sessionID,
		ch:        make(chan *protocol.Notification, subscriptionBuffer),
		set:       ss,
	}
	for _, topic := range topics {
		sub.topics[topic] = true
	}
	ss.subs[sub.id] = sub
	return sub
}

// remove unregisters a subscription and closes its channel.
func (ss *subscriptionSet) remove(id uint64) {
	ss.mu.Lock()
	sub, ok := ss.subs[id]
	if ok {
		delete(ss.subs, id)
	}
	ss.mu.Unlock()

	if ok {
		sub.closeOnce.Do(func() { close(sub.ch) })
	}
}

// publish fans a notification out to every matching subscription.
// Called only from the dispatcher's read loop.
func (ss *subscriptionSet) publish(n *protocol.Notification) {
	if n == nil {
		return
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()

	for _, sub := range ss.subs {
		if !sub.matches(n) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			ss.logger.Warn("dropping notification for slow subscriber",
				"topic", n.Topic, "subscription", sub.id)
		}
	}
}

// closeAll closes every subscription channel. Called once when the
// connection reaches its terminal closed state.
func (ss *subscriptionSet) closeAll() {
	ss.mu.Lock()
	if ss.closed {
		ss.mu.Unlock()
		return
	}
	ss.closed = true
	subs := ss.subs
	ss.subs = make(map[uint64]*Subscription)
	ss.mu.Unlock()

	for _, sub := range subs {
		sub.closeOnce.Do(func() { close(sub.ch) })
	}
}
