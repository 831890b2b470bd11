package domain

import "context"

// Client is one registered connection as seen by the relay. Implementations
// must funnel all outbound writes through a single writer so concurrent Send
// calls never interleave bytes on the wire.
type Client interface {
	// ID returns the unique connection identifier.
	ID() string

	// Send enqueues an encoded frame for delivery. It blocks at most until
	// ctx expires; a full queue or closed connection is reported as an error.
	Send(ctx context.Context, message []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}
