package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/escrowpay/backend/internal/events"
	"github.com/escrowpay/backend/internal/models"
	"github.com/escrowpay/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrValidation marks caller-fixable input problems. Handlers translate it
// to a 400 with the wrapped detail.
var ErrValidation = errors.New("validation failed")

func missingField(name string) error {
	return fmt.Errorf("%w: missing field %s", ErrValidation, name)
}

type EscrowService struct {
	ledger    repositories.Ledger
	publisher events.Publisher
	log       *zap.Logger
}

func NewEscrowService(ledger repositories.Ledger, publisher events.Publisher, log *zap.Logger) *EscrowService {
	return &EscrowService{ledger: ledger, publisher: publisher, log: log}
}

type CreateEscrowInput struct {
	Title    string
	Amount   int64
	Currency string
	BuyerID  string
	SellerID string
	Metadata map[string]any
}

func (s *EscrowService) CreateEscrow(ctx context.Context, input CreateEscrowInput) (*models.Escrow, error) {
	switch {
	case input.Title == "":
		return nil, missingField("title")
	case input.Amount == 0:
		return nil, missingField("amount")
	case input.Currency == "":
		return nil, missingField("currency")
	case input.BuyerID == "":
		return nil, missingField("buyer_id")
	case input.SellerID == "":
		return nil, missingField("seller_id")
	}
	if input.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	id := uuid.New()
	escrow := &models.Escrow{
		ID:       id,
		Title:    input.Title,
		Amount:   input.Amount,
		Currency: input.Currency,
		BuyerID:  input.BuyerID,
		SellerID: input.SellerID,
		Status:   models.EscrowStatusCreated,
		// Opaque reference the buyer attaches to the rail payment so the
		// provider event can be matched back to this escrow.
		FundingRef: fmt.Sprintf("escrow:%s", id),
		Metadata:   input.Metadata,
	}
	if err := s.ledger.CreateEscrow(ctx, escrow); err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}
	return escrow, nil
}

func (s *EscrowService) GetEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return s.ledger.GetEscrow(ctx, id)
}

func (s *EscrowService) ListEscrows(ctx context.Context, f repositories.EscrowFilter) ([]models.Escrow, error) {
	return s.ledger.ListEscrows(ctx, f)
}

func (s *EscrowService) ListTransactions(ctx context.Context, escrowID uuid.UUID) ([]models.Transaction, error) {
	if _, err := s.ledger.GetEscrow(ctx, escrowID); err != nil {
		return nil, err
	}
	return s.ledger.ListTransactions(ctx, escrowID)
}

// Direct actions. Fund, Release and Refund append a ledger entry with the
// escrow amount; Dispute and Cancel are pure status changes.

func (s *EscrowService) Fund(ctx context.Context, id uuid.UUID) (string, error) {
	return s.applyAction(ctx, id, models.ActionFund, &ledgerEntry{kind: models.TransactionKindFund})
}

func (s *EscrowService) Release(ctx context.Context, id uuid.UUID) (string, error) {
	return s.applyAction(ctx, id, models.ActionRelease, &ledgerEntry{kind: models.TransactionKindRelease})
}

func (s *EscrowService) Refund(ctx context.Context, id uuid.UUID) (string, error) {
	return s.applyAction(ctx, id, models.ActionRefund, &ledgerEntry{kind: models.TransactionKindRefund})
}

func (s *EscrowService) Dispute(ctx context.Context, id uuid.UUID) (string, error) {
	return s.applyAction(ctx, id, models.ActionDispute, nil)
}

// Cancel is not exposed over HTTP; the worker uses it to expire escrows
// that never completed funding.
func (s *EscrowService) Cancel(ctx context.Context, id uuid.UUID) (string, error) {
	return s.applyAction(ctx, id, models.ActionCancel, nil)
}

// ledgerEntry describes the transaction to record alongside a transition.
// providerRef is empty for direct actions; for those the escrow amount is
// recorded. Provider-keyed entries record the amount the provider reported.
type ledgerEntry struct {
	kind        string
	provider    string
	providerRef string
	amount      int64
}

// applyAction is the single atomic sequence both direct actions and webhook
// reconciliation terminate in: lock the escrow row, run the state machine,
// persist the new status, append the ledger entry, commit.
func (s *EscrowService) applyAction(ctx context.Context, escrowID uuid.UUID, action string, entry *ledgerEntry) (string, error) {
	var newStatus string
	var changed bool

	err := s.ledger.WithEscrowLock(ctx, escrowID, func(ctx context.Context, esc *models.Escrow, unit repositories.EscrowUnit) error {
		next, applied, err := models.Transition(esc.Status, action)
		if err != nil {
			return err
		}
		newStatus = next
		if !applied {
			// Already at the target status: succeed without a second
			// status write or ledger entry.
			return nil
		}
		changed = true

		if err := unit.UpdateStatus(ctx, escrowID, next); err != nil {
			return fmt.Errorf("update escrow status: %w", err)
		}
		if entry == nil {
			return nil
		}

		tx := &models.Transaction{
			ID:       uuid.New(),
			EscrowID: escrowID,
			Kind:     entry.kind,
			Amount:   esc.Amount,
		}
		if entry.providerRef != "" {
			exists, err := unit.HasTransaction(ctx, entry.kind, entry.providerRef)
			if err != nil {
				return fmt.Errorf("check ledger entry: %w", err)
			}
			if exists {
				// Same business event arrived under a second provider
				// event id; the entry is already on the ledger.
				return nil
			}
			tx.Provider = &entry.provider
			tx.ProviderRef = &entry.providerRef
			tx.Amount = entry.amount
		}
		if err := unit.InsertTransaction(ctx, tx); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if changed {
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventEscrowStatusChanged,
			Payload: map[string]any{
				"escrow_id":  escrowID.String(),
				"action":     action,
				"new_status": newStatus,
			},
		})
	}
	return newStatus, nil
}
