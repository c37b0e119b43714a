package queue

import (
	"context"
	"time"
)

// Store persists envelopes for a Queue.
//
// Claim leases up to limit envelopes whose RunAt is not after now. A leased
// envelope is invisible to other Claim calls until it is pushed again, acked,
// or its lease runs out.
type Store interface {
	Push(ctx context.Context, env Envelope) error
	Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Envelope, error)
	Ack(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
