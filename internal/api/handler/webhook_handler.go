package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/api/middleware"
	"github.com/fieldserv/wallet-ledger/internal/api/service"
	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

// WebhookHandler receives settlement callbacks from the payment gateway.
// Gateways retry webhooks aggressively, so every path that cannot succeed on
// retry answers 2xx to stop the redelivery loop.
type WebhookHandler struct {
	depositService service.DepositService
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, depositService service.DepositService) *WebhookHandler {
	return &WebhookHandler{
		depositService: depositService,
		logger:         logger,
	}
}

// GatewaySettlement handles the gateway's settlement notification for a
// pending deposit and enqueues it for asynchronous processing
func (h *WebhookHandler) GatewaySettlement(c *gin.Context) {
	var req GatewayWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid webhook payload", "error", err)
		RespondBadRequest(c, "Invalid webhook payload: "+err.Error())
		return
	}

	movementID, err := uuid.Parse(req.MovementID)
	if err != nil {
		RespondBadRequest(c, "Invalid movement ID")
		return
	}

	timestamp := time.Now()
	if req.Timestamp != "" {
		if parsed, perr := time.Parse(time.RFC3339, req.Timestamp); perr == nil {
			timestamp = parsed
		}
	}

	event := &shared.SettlementEvent{
		MovementID:        movementID,
		ExternalPaymentID: req.SessionID,
		Outcome:           shared.GatewayOutcome(req.Outcome),
		CorrelationID:     middleware.GetCorrelationID(c),
		Timestamp:         timestamp,
	}

	if err := h.depositService.AcknowledgeSettlement(c.Request.Context(), event); err != nil {
		if errors.Is(err, movement.ErrMovementNotFound{}) {
			h.logger.Warn("Settlement webhook for unknown movement", "movement_id", req.MovementID)
			RespondNotFound(c, "Movement not found")
			return
		}
		h.logger.Error("Failed to acknowledge settlement", "movement_id", req.MovementID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, gin.H{
		"movement_id": movementID.String(),
		"outcome":     req.Outcome,
	})
}
