package handlers

import (
	"context"
	"errors"

	"github.com/escrowpay/backend/internal/http/dto"
	"github.com/escrowpay/backend/internal/models"
	"github.com/escrowpay/backend/internal/repositories"
	"github.com/escrowpay/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

// statusForError is the single place domain errors become HTTP statuses:
// 4xx for caller-fixable problems, 5xx only for infrastructure failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, repositories.ErrEscrowNotFound), errors.Is(err, services.ErrUnknownProvider):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInvalidSignature):
		return fiber.StatusUnauthorized
	case errors.Is(err, repositories.ErrLockTimeout):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	var req dto.CreateEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	escrow, err := h.escrowService.CreateEscrow(c.Context(), services.CreateEscrowInput{
		Title:    req.Title,
		Amount:   req.Amount,
		Currency: req.Currency,
		BuyerID:  req.BuyerID,
		SellerID: req.SellerID,
		Metadata: req.Metadata,
	})
	if err != nil {
		return h.fail(c, err, "create escrow failed")
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: dto.CreateEscrowResponse{
		ID:         escrow.ID.String(),
		Status:     escrow.Status,
		FundingRef: escrow.FundingRef,
	}})
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	escrow, err := h.escrowService.GetEscrow(c.Context(), id)
	if err != nil {
		return h.fail(c, err, "get escrow failed")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: escrow})
}

func (h *EscrowHandler) ListEscrows(c *fiber.Ctx) error {
	filter := repositories.EscrowFilter{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("buyer_id"); v != "" {
		filter.BuyerID = &v
	}

	escrows, err := h.escrowService.ListEscrows(c.Context(), filter)
	if err != nil {
		return h.fail(c, err, "list escrows failed")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: escrows})
}

func (h *EscrowHandler) ListTransactions(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	txs, err := h.escrowService.ListTransactions(c.Context(), id)
	if err != nil {
		return h.fail(c, err, "list transactions failed")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *EscrowHandler) Fund(c *fiber.Ctx) error {
	return h.action(c, h.escrowService.Fund)
}

func (h *EscrowHandler) Release(c *fiber.Ctx) error {
	return h.action(c, h.escrowService.Release)
}

func (h *EscrowHandler) Refund(c *fiber.Ctx) error {
	return h.action(c, h.escrowService.Refund)
}

func (h *EscrowHandler) Dispute(c *fiber.Ctx) error {
	return h.action(c, h.escrowService.Dispute)
}

func (h *EscrowHandler) action(c *fiber.Ctx, do func(ctx context.Context, id uuid.UUID) (string, error)) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid escrow id"})
	}

	status, err := do(c.Context(), id)
	if err != nil {
		return h.fail(c, err, "escrow action failed")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.ActionResponse{ID: id.String(), Status: status}})
}

func (h *EscrowHandler) fail(c *fiber.Ctx, err error, msg string) error {
	code := statusForError(err)
	if code >= fiber.StatusInternalServerError {
		h.log.Error(msg, zap.Error(err))
		return c.Status(code).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
}
