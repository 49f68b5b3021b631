package handler

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
)

// Amounts cross the API as decimal strings ("50.00") and are stored as int64
// cents internally. Parsing rejects anything with sub-cent precision.

var (
	errAmountNotPositive = errors.New("amount must be greater than zero")
	errAmountPrecision   = errors.New("amount cannot have more than two decimal places")
)

// parseAmount converts a decimal string into cents
func parseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.New("invalid amount format")
	}
	if !d.IsPositive() {
		return 0, errAmountNotPositive
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, errAmountPrecision
	}
	return cents.IntPart(), nil
}

// formatAmount converts cents back into a decimal string with two places
func formatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}

func formatAmountPtr(cents *int64) *string {
	if cents == nil {
		return nil
	}
	s := formatAmount(*cents)
	return &s
}

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	Balance        string `json:"balance"`
	BlockedBalance string `json:"blocked_balance"`
	Available      string `json:"available"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// MovementResponse represents a movement in API responses. Amount keeps its
// sign: negative for debits, positive for credits.
type MovementResponse struct {
	ID            string  `json:"id"`
	WalletID      string  `json:"wallet_id"`
	Kind          string  `json:"kind"`
	Amount        string  `json:"amount"`
	BalanceBefore *string `json:"balance_before,omitempty"`
	BalanceAfter  *string `json:"balance_after,omitempty"`
	Description   string  `json:"description,omitempty"`
	ReferenceID   string  `json:"reference_id,omitempty"`
	ReferenceType string  `json:"reference_type,omitempty"`
	Status        string  `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	SettledAt     string  `json:"settled_at,omitempty"`
}

// MovementListResponse represents a page of movement history
type MovementListResponse struct {
	Movements []MovementResponse `json:"movements"`
}

// CreateDepositRequest represents a request to fund the wallet via the
// payment gateway
type CreateDepositRequest struct {
	Amount         string `json:"amount" binding:"required"`
	PaymentMethod  string `json:"payment_method" binding:"required"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// DepositResponse represents an accepted deposit request awaiting settlement
type DepositResponse struct {
	MovementID  string `json:"movement_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Status      string `json:"status"`
	Amount      string `json:"amount"`
}

// ChargeRequest represents a synchronous debit or credit against the wallet
type ChargeRequest struct {
	Amount         string `json:"amount" binding:"required"`
	Kind           string `json:"kind" binding:"required"`
	ReferenceID    string `json:"reference_id,omitempty"`
	ReferenceType  string `json:"reference_type,omitempty"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ChargeResponse bundles the recorded movement with the resulting balance
type ChargeResponse struct {
	Movement MovementResponse `json:"movement"`
	Balance  string           `json:"balance"`
}

// GatewayWebhookRequest represents the settlement callback posted by the
// payment gateway
type GatewayWebhookRequest struct {
	MovementID string `json:"movement_id" binding:"required,uuid"`
	SessionID  string `json:"session_id" binding:"required"`
	Outcome    string `json:"outcome" binding:"required,oneof=APPROVED REJECTED"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=50" binding:"min=1,max=100"`
}

// mapWalletToResponse maps a wallet entity to a wallet response DTO
func mapWalletToResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:             w.ID.String(),
		OwnerID:        w.OwnerID.String(),
		Balance:        formatAmount(w.Balance),
		BlockedBalance: formatAmount(w.BlockedBalance),
		Available:      formatAmount(w.Available()),
		CreatedAt:      w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      w.UpdatedAt.Format(time.RFC3339),
	}
}

// mapMovementToResponse maps a movement entity to a movement response DTO
func mapMovementToResponse(m *movement.Movement) MovementResponse {
	resp := MovementResponse{
		ID:            m.ID.String(),
		WalletID:      m.WalletID.String(),
		Kind:          string(m.Kind),
		Amount:        formatAmount(m.Amount),
		BalanceBefore: formatAmountPtr(m.BalanceBefore),
		BalanceAfter:  formatAmountPtr(m.BalanceAfter),
		Description:   m.Description,
		ReferenceID:   m.ReferenceID,
		ReferenceType: m.ReferenceType,
		Status:        string(m.Status),
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
	if m.SettledAt != nil {
		resp.SettledAt = m.SettledAt.Format(time.RFC3339)
	}
	return resp
}
