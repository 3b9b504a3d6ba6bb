package handlers

import (
	"github.com/escrowpay/backend/internal/http/dto"
	"github.com/escrowpay/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's HMAC-SHA512 hex signature over the
// exact raw request body.
const SignatureHeader = "X-Webhook-Signature"

type WebhookHandler struct {
	webhookService *services.WebhookService
	log            *zap.Logger
}

func NewWebhookHandler(webhookService *services.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, log: log}
}

// HandleEvent acknowledges processed, duplicate and ignored outcomes with
// 200 so the provider stops redelivering; only signature failures and a
// malformed envelope get a client-error status.
func (h *WebhookHandler) HandleEvent(c *fiber.Ctx) error {
	provider := c.Params("provider")

	// c.Body() is the raw bytes the signature was computed over; the
	// envelope is decoded later, inside the pipeline.
	outcome, err := h.webhookService.ProcessEvent(c.Context(), provider, c.Body(), c.Get(SignatureHeader))
	if err != nil {
		code := statusForError(err)
		if code >= fiber.StatusInternalServerError {
			h.log.Error("webhook processing failed",
				zap.String("provider", provider),
				zap.Error(err))
			return c.Status(code).JSON(dto.ErrorResponse{Error: "internal error"})
		}
		return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.WebhookResponse{Status: outcome})
}
