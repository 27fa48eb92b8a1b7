package softphone

import "context"

// IncomingCall is an inbound-call announcement from the signaling network.
type IncomingCall struct {
	CallID string
	From   string
}

// Conn is one registered signaling connection. Incoming returns the same
// channel on every invocation; the channel is closed when the connection is
// closed, which is how subscribers learn to stop.
type Conn interface {
	Incoming() <-chan IncomingCall
	Accept(ctx context.Context, callID string) error
	Reject(ctx context.Context, callID string) error
	Hangup(ctx context.Context, callID string) error
	SetMuted(ctx context.Context, callID string, muted bool) error
	Close(ctx context.Context) error
}

// Transport registers a device with the provider's signaling network using a
// signaling token minted by the server.
type Transport interface {
	Connect(ctx context.Context, token, identity string) (Conn, error)
}
