package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldserv/wallet-ledger/internal/api/middleware"
	"github.com/fieldserv/wallet-ledger/internal/api/service"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
)

// WalletHandler handles HTTP requests for wallet and charge operations
type WalletHandler struct {
	walletService service.WalletService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// Get returns the authenticated owner's wallet, creating an empty one on
// first access
func (h *WalletHandler) Get(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	w, err := h.walletService.GetOrCreateWallet(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("Failed to get wallet", "owner_id", ownerID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapWalletToResponse(w))
}

// ListMovements returns the owner's paginated movement history, newest first
func (h *WalletHandler) ListMovements(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	movements, total, err := h.walletService.ListMovements(c.Request.Context(), ownerID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list movements", "owner_id", ownerID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	response := MovementListResponse{Movements: make([]MovementResponse, 0, len(movements))}
	for _, m := range movements {
		response.Movements = append(response.Movements, mapMovementToResponse(m))
	}

	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, int(total))
}

// Pay debits the owner's wallet for a service, parts or subscription charge
func (h *WalletHandler) Pay(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	var req ChargeRequest
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

	kind := shared.MovementKind(req.Kind)
	if !kind.IsDebitKind() {
		h.logger.Error("Invalid debit kind", "kind", req.Kind)
		RespondBadRequest(c, "Invalid movement kind for a payment")
		return
	}

	m, w, err := h.walletService.Debit(c.Request.Context(), &service.ChargeParams{
		OwnerID:        ownerID,
		Amount:         amount,
		Kind:           kind,
		ReferenceID:    req.ReferenceID,
		ReferenceType:  req.ReferenceType,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		var insufficientErr wallet.ErrInsufficientFunds
		if errors.As(err, &insufficientErr) {
			h.logger.Warn("Debit rejected for insufficient funds",
				"wallet_id", insufficientErr.WalletID.String(),
				"available", insufficientErr.Available,
				"requested", insufficientErr.Requested,
			)
			RespondUnprocessable(c, "INSUFFICIENT_FUNDS", "Available balance cannot cover the requested amount")
			return
		}
		if errors.Is(err, wallet.ErrInvalidAmount) {
			RespondBadRequest(c, "Amount must be greater than zero")
			return
		}
		h.logger.Error("Failed to debit wallet", "owner_id", ownerID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, ChargeResponse{
		Movement: mapMovementToResponse(m),
		Balance:  formatAmount(w.Balance),
	})
}

// Credit adds funds to the owner's wallet for a refund or bonus
func (h *WalletHandler) Credit(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return
	}

	var req ChargeRequest
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

	kind := shared.MovementKind(req.Kind)
	if !kind.IsCreditKind() {
		h.logger.Error("Invalid credit kind", "kind", req.Kind)
		RespondBadRequest(c, "Invalid movement kind for a credit")
		return
	}

	m, w, err := h.walletService.Credit(c.Request.Context(), &service.ChargeParams{
		OwnerID:        ownerID,
		Amount:         amount,
		Kind:           kind,
		ReferenceID:    req.ReferenceID,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		if errors.Is(err, wallet.ErrInvalidAmount) {
			RespondBadRequest(c, "Amount must be greater than zero")
			return
		}
		h.logger.Error("Failed to credit wallet", "owner_id", ownerID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, ChargeResponse{
		Movement: mapMovementToResponse(m),
		Balance:  formatAmount(w.Balance),
	})
}
