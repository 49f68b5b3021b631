package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/api/middleware"
	"github.com/fieldserv/wallet-ledger/internal/api/service"
	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/platform/gateway"
)

// DepositHandler handles HTTP requests for the asynchronous deposit flow
type DepositHandler struct {
	depositService service.DepositService
	logger         *slog.Logger
}

// NewDepositHandler creates a new deposit handler
func NewDepositHandler(logger *slog.Logger, depositService service.DepositService) *DepositHandler {
	return &DepositHandler{
		depositService: depositService,
		logger:         logger,
	}
}

// Create opens a gateway checkout session for funding the wallet. The
// response is 202: no funds move until the gateway confirms via webhook.
func (h *DepositHandler) Create(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	var req CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	checkout, err := h.depositService.RequestDeposit(c.Request.Context(), &service.DepositParams{
		OwnerID:        ownerID,
		Amount:         amount,
		Method:         shared.PaymentMethod(req.PaymentMethod),
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		if errors.Is(err, shared.ErrInvalidPaymentMethod) {
			RespondBadRequest(c, "Invalid payment method")
			return
		}
		if errors.Is(err, gateway.ErrGatewayUnavailable{}) {
			h.logger.Error("Payment gateway unavailable", "owner_id", ownerID.String(), "error", err)
			RespondBadGateway(c, "")
			return
		}
		h.logger.Error("Failed to request deposit", "owner_id", ownerID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, DepositResponse{
		MovementID:  checkout.Movement.ID.String(),
		SessionID:   checkout.SessionID,
		RedirectURL: checkout.RedirectURL,
		Status:      string(checkout.Movement.Status),
		Amount:      formatAmount(checkout.Movement.Amount),
	})
}

// Cancel abandons a pending deposit before the gateway settles it. Deposits
// that already reached a terminal state cannot be cancelled.
func (h *DepositHandler) Cancel(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	movementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid movement ID")
		return
	}

	m, err := h.depositService.CancelDeposit(c.Request.Context(), ownerID, movementID)
	if err != nil {
		if errors.Is(err, movement.ErrMovementNotFound{}) {
			RespondNotFound(c, "Movement not found")
			return
		}
		if errors.Is(err, movement.ErrNotPending{}) {
			RespondConflict(c, "Deposit already settled")
			return
		}
		h.logger.Error("Failed to cancel deposit", "owner_id", ownerID.String(), "movement_id", movementID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapMovementToResponse(m))
}
