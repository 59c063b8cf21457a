package protocol

import "fmt"

// FrameKind tags the result of classifying an incoming frame payload.
type FrameKind int

const (
	KindReply FrameKind = iota
	KindNotification
	KindMalformed
)

// Classified is the outcome of Classify. For KindReply, ID and Message
// are set. For KindNotification, Topic and Message are set. For
// KindMalformed, Err describes why the payload could not be used.
type Classified struct {
	Kind    FrameKind
	ID      uint64
	Topic   NotificationTopic
	Message *ServerMessage
	Err     error
}

// Classify parses a frame payload and tags it as a reply, a
// notification, or malformed. It is total: any byte sequence produces
// exactly one of the three tags and never panics.
func Classify(payload []byte) Classified {
	m, err := DecodeServer(payload)
	if err != nil {
		return Classified{Kind: KindMalformed, Err: fmt.Errorf("parsing server message: %w", err)}
	}

	switch {
	case m.Notification != nil:
		if m.ID != nil {
			// A correlated notification is a contradiction in terms.
			return Classified{Kind: KindMalformed, Err: fmt.Errorf("notification carries correlation id %d", *m.ID)}
		}
		return Classified{Kind: KindNotification, Topic: m.Notification.Topic, Message: m}
	case m.ID != nil:
		return Classified{Kind: KindReply, ID: *m.ID, Message: m}
	default:
		return Classified{Kind: KindMalformed, Err: fmt.Errorf("envelope has neither correlation id nor notification")}
	}
}
