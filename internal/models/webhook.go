package models

import "time"

// WebhookDelivery records one accepted inbound provider event. The
// (provider, event_id) pair is unique; a failed insert on that key is the
// signal that the event was already processed. Rows for events with invalid
// signatures are never written, so a corrected resend is not mistaken for a
// duplicate.
type WebhookDelivery struct {
	Provider   string    `json:"provider"`
	EventID    string    `json:"event_id"`
	Signature  string    `json:"signature"`
	ReceivedAt time.Time `json:"received_at"`
}
