package models

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		current string
		action  string
		next    string
		applied bool
		wantErr bool
	}{
		// Direct happy path
		{EscrowStatusCreated, ActionFund, EscrowStatusFundingPending, true, false},
		{EscrowStatusFundingPending, ActionRelease, EscrowStatusReleased, true, false},
		{EscrowStatusFunded, ActionRelease, EscrowStatusReleased, true, false},
		{EscrowStatusFunded, ActionRefund, EscrowStatusRefunded, true, false},
		{EscrowStatusCreated, ActionDispute, EscrowStatusDisputed, true, false},
		{EscrowStatusFundingPending, ActionDispute, EscrowStatusDisputed, true, false},
		{EscrowStatusFunded, ActionDispute, EscrowStatusDisputed, true, false},
		{EscrowStatusCreated, ActionCancel, EscrowStatusCanceled, true, false},
		{EscrowStatusFundingPending, ActionCancel, EscrowStatusCanceled, true, false},

		// Provider-confirmed happy path
		{EscrowStatusCreated, ActionMarkFunded, EscrowStatusFunded, true, false},
		{EscrowStatusFundingPending, ActionMarkFunded, EscrowStatusFunded, true, false},
		{EscrowStatusFunded, ActionMarkReleased, EscrowStatusReleased, true, false},
		{EscrowStatusFundingPending, ActionMarkReleased, EscrowStatusReleased, true, false},
		{EscrowStatusFunded, ActionMarkRefunded, EscrowStatusRefunded, true, false},
		{EscrowStatusReleased, ActionMarkRefunded, EscrowStatusRefunded, true, false},

		// Dispute resolution: refund or provider-confirmed release
		{EscrowStatusDisputed, ActionRefund, EscrowStatusRefunded, true, false},
		{EscrowStatusDisputed, ActionMarkRefunded, EscrowStatusRefunded, true, false},
		{EscrowStatusDisputed, ActionMarkReleased, EscrowStatusReleased, true, false},

		// Idempotent no-ops
		{EscrowStatusFundingPending, ActionFund, EscrowStatusFundingPending, false, false},
		{EscrowStatusFunded, ActionMarkFunded, EscrowStatusFunded, false, false},
		{EscrowStatusReleased, ActionMarkReleased, EscrowStatusReleased, false, false},
		{EscrowStatusRefunded, ActionMarkRefunded, EscrowStatusRefunded, false, false},
		{EscrowStatusDisputed, ActionDispute, EscrowStatusDisputed, false, false},

		// Guarded rejections
		{EscrowStatusCreated, ActionRelease, EscrowStatusCreated, false, true},
		{EscrowStatusReleased, ActionRelease, EscrowStatusReleased, false, true},
		{EscrowStatusDisputed, ActionRelease, EscrowStatusDisputed, false, true},
		{EscrowStatusRefunded, ActionRefund, EscrowStatusRefunded, false, true},
		{EscrowStatusReleased, ActionFund, EscrowStatusReleased, false, true},
		{EscrowStatusReleased, ActionDispute, EscrowStatusReleased, false, true},
		{EscrowStatusRefunded, ActionDispute, EscrowStatusRefunded, false, true},
		{EscrowStatusCanceled, ActionDispute, EscrowStatusCanceled, false, true},
		{EscrowStatusFunded, ActionCancel, EscrowStatusFunded, false, true},
		{EscrowStatusReleased, ActionMarkFunded, EscrowStatusReleased, false, true},
		{EscrowStatusDisputed, ActionMarkFunded, EscrowStatusDisputed, false, true},

		// Unknown action
		{EscrowStatusCreated, "nonexistent", EscrowStatusCreated, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.current+"+"+tt.action, func(t *testing.T) {
			next, applied, err := Transition(tt.current, tt.action)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Transition(%q, %q) error = %v, wantErr %v", tt.current, tt.action, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition(%q, %q) error %v is not ErrInvalidTransition", tt.current, tt.action, err)
			}
			if next != tt.next {
				t.Errorf("Transition(%q, %q) next = %q, want %q", tt.current, tt.action, next, tt.next)
			}
			if applied != tt.applied {
				t.Errorf("Transition(%q, %q) applied = %v, want %v", tt.current, tt.action, applied, tt.applied)
			}
		})
	}
}

func TestTransitionTargetsAreKnownStatuses(t *testing.T) {
	known := map[string]bool{
		EscrowStatusCreated: true, EscrowStatusFundingPending: true,
		EscrowStatusFunded: true, EscrowStatusReleased: true,
		EscrowStatusRefunded: true, EscrowStatusCanceled: true,
		EscrowStatusDisputed: true,
	}

	for action, rule := range transitionRules {
		if !known[rule.to] {
			t.Errorf("action %q targets unknown status %q", action, rule.to)
		}
		for _, from := range rule.from {
			if !known[from] {
				t.Errorf("action %q allows unknown source status %q", action, from)
			}
		}
	}
}

func TestTerminalStatusesOnlyResolveViaProviderOrRefund(t *testing.T) {
	// released/refunded/canceled have no direct exits except the
	// reconciliation-driven mark_* corrections and refund.
	for _, terminal := range []string{EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusCanceled} {
		for _, direct := range []string{ActionFund, ActionRelease, ActionDispute, ActionCancel} {
			if _, _, err := Transition(terminal, direct); err == nil {
				t.Errorf("direct action %q should be rejected from terminal status %q", direct, terminal)
			}
		}
	}
}

func TestKindForAction(t *testing.T) {
	tests := []struct {
		action string
		kind   string
	}{
		{ActionFund, TransactionKindFund},
		{ActionMarkFunded, TransactionKindFund},
		{ActionRelease, TransactionKindRelease},
		{ActionMarkReleased, TransactionKindRelease},
		{ActionRefund, TransactionKindRefund},
		{ActionMarkRefunded, TransactionKindRefund},
		{ActionDispute, ""},
		{ActionCancel, ""},
	}
	for _, tt := range tests {
		if got := KindForAction(tt.action); got != tt.kind {
			t.Errorf("KindForAction(%q) = %q, want %q", tt.action, got, tt.kind)
		}
	}
}
