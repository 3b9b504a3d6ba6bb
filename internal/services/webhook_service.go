package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/escrowpay/backend/internal/config"
	"github.com/escrowpay/backend/internal/events"
	"github.com/escrowpay/backend/internal/models"
	"github.com/escrowpay/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownProvider  = errors.New("unknown webhook provider")
)

// Webhook outcomes, all acknowledged with 200 so the provider does not
// redeliver. The response body distinguishes them.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// Providers report amounts in hundredths of the ledger's minor unit.
const providerAmountDivisor = 100

// Provider event types that map to escrow actions. Everything else is
// acknowledged and ignored.
var eventActions = map[string]string{
	"charge.success":   models.ActionMarkFunded,
	"transfer.success": models.ActionMarkReleased,
	"refund.processed": models.ActionMarkRefunded,
}

type webhookEnvelope struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Data      struct {
		EscrowID    string `json:"escrow_id"`
		Reference   string `json:"reference"`
		AmountMinor int64  `json:"amount_minor"`
	} `json:"data"`
}

type WebhookService struct {
	ledger    repositories.Ledger
	escrows   *EscrowService
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewWebhookService(ledger repositories.Ledger, escrows *EscrowService, publisher events.Publisher, cfg *config.Config, log *zap.Logger) *WebhookService {
	return &WebhookService{ledger: ledger, escrows: escrows, publisher: publisher, cfg: cfg, log: log}
}

// ProcessEvent runs one inbound provider event through the reconciliation
// pipeline: authenticate, parse, deduplicate, map to an action, apply. The
// delivery record insert is the authoritative idempotency gate; it happens
// before any escrow mutation, so a duplicate delivery can never produce a
// second side effect.
func (s *WebhookService) ProcessEvent(ctx context.Context, provider string, body []byte, signature string) (string, error) {
	secret, ok := s.cfg.WebhookSecret(provider)
	if !ok {
		return "", ErrUnknownProvider
	}
	if !validSignature(secret, body, signature) {
		// Nothing is recorded: a corrected resend must not be mistaken
		// for a duplicate.
		return "", ErrInvalidSignature
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("%w: malformed event envelope", ErrValidation)
	}
	if env.ID == "" || env.EventType == "" {
		// Harmless malformed payloads are acknowledged so the provider
		// does not retry them forever.
		s.log.Warn("webhook event missing id or type, ignoring",
			zap.String("provider", provider))
		return OutcomeIgnored, nil
	}

	delivery := &models.WebhookDelivery{Provider: provider, EventID: env.ID, Signature: signature}
	if err := s.ledger.InsertWebhookDelivery(ctx, delivery); err != nil {
		if errors.Is(err, repositories.ErrDuplicateDelivery) {
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("record webhook delivery: %w", err)
	}

	action, ok := eventActions[env.EventType]
	if !ok {
		s.log.Debug("unmapped webhook event type",
			zap.String("provider", provider),
			zap.String("event_type", env.EventType))
		return OutcomeIgnored, nil
	}

	escrowID, err := uuid.Parse(env.Data.EscrowID)
	if err != nil {
		s.log.Debug("webhook event without a usable escrow id",
			zap.String("provider", provider),
			zap.String("event_id", env.ID))
		return OutcomeIgnored, nil
	}

	providerRef := env.Data.Reference
	if providerRef == "" {
		providerRef = env.ID
	}
	entry := &ledgerEntry{
		kind:        models.KindForAction(action),
		provider:    provider,
		providerRef: providerRef,
		amount:      env.Data.AmountMinor / providerAmountDivisor,
	}

	newStatus, err := s.escrows.applyAction(ctx, escrowID, action, entry)
	if err != nil {
		if errors.Is(err, repositories.ErrEscrowNotFound) {
			// Test traffic, or an escrow owned by an unrelated system.
			return OutcomeIgnored, nil
		}
		// The delivery is already durably recorded, so a provider retry
		// would short-circuit as a duplicate. Acknowledge and leave the
		// failure to manual reconciliation.
		s.log.Error("webhook apply failed after delivery was recorded",
			zap.String("provider", provider),
			zap.String("event_id", env.ID),
			zap.String("escrow_id", escrowID.String()),
			zap.Error(err))
		return OutcomeProcessed, nil
	}

	if action == models.ActionMarkFunded {
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventPaymentReceived,
			Payload: map[string]any{
				"escrow_id":    escrowID.String(),
				"provider":     provider,
				"provider_ref": providerRef,
				"amount":       entry.amount,
				"new_status":   newStatus,
			},
		})
	}
	return OutcomeProcessed, nil
}

func validSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
