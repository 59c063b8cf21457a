package transport

import (
	"context"
	"fmt"

	"github.com/termwiresh/termwire/protocol"
)

// handshake runs the authentication exchange on a freshly dialed
// transport. It sends the hello and reads frames until the multiplexer
// accepts or denies the connection.
//
// In prompt mode the multiplexer may answer "pending" first while it
// waits for the user; that state is surfaced through OnAuthPending and
// the wait continues until a terminal answer arrives or ctx expires.
func handshake(ctx context.Context, tr Transport, opts *Options) (*Grant, error) {
	hello := &protocol.HelloRequest{
		ClientName:     opts.ClientName,
		ClientID:       opts.ClientID,
		LibraryVersion: opts.LibraryVersion,
	}
	if opts.Mode == AuthPreauthorized {
		switch {
		case opts.Cookie != "":
			cookie := opts.Cookie
			hello.Cookie = &cookie
		case opts.Key != "":
			key := opts.Key
			hello.Key = &key
		default:
			return nil, &AuthError{Message: "pre-authorized mode requires a cookie or key"}
		}
	}

	payload, err := protocol.EncodeClient(&protocol.ClientMessage{
		ID:    protocol.HelloID,
		Hello: hello,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding hello: %w", err)
	}
	if err := tr.Send(ctx, payload); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	for {
		frame, err := tr.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("awaiting handshake reply: %w", err)
		}

		c := protocol.Classify(frame)
		switch c.Kind {
		case protocol.KindMalformed:
			return nil, &AuthError{Message: fmt.Sprintf("malformed handshake frame: %v", c.Err)}
		case protocol.KindNotification:
			// The multiplexer may push state changes before the
			// handshake settles. They are meaningless to an
			// unauthenticated client.
			opts.Logger.Warn("dropping notification during handshake", "topic", c.Topic)
			continue
		}

		if c.ID != protocol.HelloID || c.Message.Hello == nil {
			return nil, &AuthError{Message: fmt.Sprintf("expected hello reply, got correlation id %d", c.ID)}
		}

		resp := c.Message.Hello
		switch resp.Status {
		case protocol.AuthPending:
			if opts.OnAuthPending != nil {
				opts.OnAuthPending(resp.Message)
			}
			continue
		case protocol.AuthAccepted:
			grant := &Grant{}
			if resp.Cookie != nil {
				grant.Cookie = *resp.Cookie
			}
			return grant, nil
		case protocol.AuthDenied:
			return nil, &AuthError{Denied: true, Message: resp.Message}
		default:
			return nil, &AuthError{Message: fmt.Sprintf("unknown handshake status %q", resp.Status)}
		}
	}
}
