package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds
const (
	TransactionKindFund    = "fund"
	TransactionKindRelease = "release"
	TransactionKindRefund  = "refund"
)

// Transaction is an append-only ledger entry: one row per state-changing
// money event, never updated or deleted. Provider and ProviderRef are set
// for provider-confirmed events only; ProviderRef is the idempotency key
// for those (at most one row per (kind, provider_ref)).
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	EscrowID    uuid.UUID `json:"escrow_id"`
	Kind        string    `json:"kind"`
	Provider    *string   `json:"provider,omitempty"`
	ProviderRef *string   `json:"provider_ref,omitempty"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// KindForAction maps a state-machine action to the ledger entry kind it
// records. Actions with no money movement (dispute, cancel) map to "".
func KindForAction(action string) string {
	switch action {
	case ActionFund, ActionMarkFunded:
		return TransactionKindFund
	case ActionRelease, ActionMarkReleased:
		return TransactionKindRelease
	case ActionRefund, ActionMarkRefunded:
		return TransactionKindRefund
	default:
		return ""
	}
}
