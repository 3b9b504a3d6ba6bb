package events

import "context"

// Stream carrying all escrow lifecycle events.
const StreamEscrow = "events:escrow"

// Event types
const (
	EventEscrowStatusChanged = "escrow_status_changed"
	EventPaymentReceived     = "payment_received"
	EventDisputeStale        = "dispute_stale"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
