package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Escrow statuses
const (
	EscrowStatusCreated        = "created"
	EscrowStatusFundingPending = "funding_pending"
	EscrowStatusFunded         = "funded"
	EscrowStatusReleased       = "released"
	EscrowStatusRefunded       = "refunded"
	EscrowStatusCanceled       = "canceled"
	EscrowStatusDisputed       = "disputed"
)

// Escrow actions. Direct actions are caller-initiated and guarded; the
// mark_* actions are provider-confirmed and idempotent.
const (
	ActionFund         = "fund"
	ActionMarkFunded   = "mark_funded"
	ActionRelease      = "release"
	ActionMarkReleased = "mark_released"
	ActionRefund       = "refund"
	ActionMarkRefunded = "mark_refunded"
	ActionDispute      = "dispute"
	ActionCancel       = "cancel"
)

// ErrInvalidTransition is returned when a guarded action is requested from a
// status it is not defined for. Wrapped errors carry the offending pair.
var ErrInvalidTransition = errors.New("invalid status transition")

type transitionRule struct {
	from []string
	to   string
	// idempotent rules never reject once the target status is reached:
	// the transition becomes a silent no-op. Used for provider-confirmed
	// actions, which may arrive after the status was already reached via
	// another path.
	idempotent bool
}

var transitionRules = map[string]transitionRule{
	ActionFund: {
		from: []string{EscrowStatusCreated, EscrowStatusFundingPending},
		to:   EscrowStatusFundingPending,
	},
	ActionMarkFunded: {
		from:       []string{EscrowStatusCreated, EscrowStatusFundingPending, EscrowStatusFunded},
		to:         EscrowStatusFunded,
		idempotent: true,
	},
	ActionRelease: {
		from: []string{EscrowStatusFundingPending, EscrowStatusFunded},
		to:   EscrowStatusReleased,
	},
	ActionMarkReleased: {
		from: []string{
			EscrowStatusCreated, EscrowStatusFundingPending, EscrowStatusFunded,
			EscrowStatusRefunded, EscrowStatusCanceled, EscrowStatusDisputed,
		},
		to:         EscrowStatusReleased,
		idempotent: true,
	},
	ActionRefund: {
		from: []string{
			EscrowStatusCreated, EscrowStatusFundingPending, EscrowStatusFunded,
			EscrowStatusReleased, EscrowStatusCanceled, EscrowStatusDisputed,
		},
		to: EscrowStatusRefunded,
	},
	ActionMarkRefunded: {
		from: []string{
			EscrowStatusCreated, EscrowStatusFundingPending, EscrowStatusFunded,
			EscrowStatusReleased, EscrowStatusCanceled, EscrowStatusDisputed,
		},
		to:         EscrowStatusRefunded,
		idempotent: true,
	},
	ActionDispute: {
		from: []string{
			EscrowStatusCreated, EscrowStatusFundingPending, EscrowStatusFunded,
			EscrowStatusDisputed,
		},
		to: EscrowStatusDisputed,
	},
	ActionCancel: {
		from: []string{EscrowStatusCreated, EscrowStatusFundingPending},
		to:   EscrowStatusCanceled,
	},
}

// Transition resolves (current status, action) to the next status.
// applied=false means the escrow is already at the target status and no
// write should happen; it is still a success for the caller. Guarded
// actions requested from an undefined status return ErrInvalidTransition.
func Transition(current, action string) (next string, applied bool, err error) {
	rule, ok := transitionRules[action]
	if !ok {
		return current, false, fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}

	if current == rule.to && (rule.idempotent || contains(rule.from, current)) {
		return rule.to, false, nil
	}
	if !contains(rule.from, current) {
		return current, false, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, current)
	}
	return rule.to, true, nil
}

func contains(statuses []string, s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

type Escrow struct {
	ID         uuid.UUID      `json:"id"`
	Title      string         `json:"title"`
	Amount     int64          `json:"amount"` // minor currency units
	Currency   string         `json:"currency"`
	BuyerID    string         `json:"buyer_id"`
	SellerID   string         `json:"seller_id"`
	Status     string         `json:"status"`
	FundingRef string         `json:"funding_ref"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
