package movement

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

// Movement is one immutable entry in a wallet's balance history. Amount is
// the signed delta in minor units: positive for credits, negative for debits.
// BalanceBefore/BalanceAfter snapshot the wallet balance around the moment
// the movement was applied; they stay nil while a deposit is still pending.
type Movement struct {
	ID                uuid.UUID             `json:"id"`
	WalletID          uuid.UUID             `json:"wallet_id"`
	Kind              shared.MovementKind   `json:"kind"`
	Amount            int64                 `json:"amount"`
	BalanceBefore     *int64                `json:"balance_before,omitempty"`
	BalanceAfter      *int64                `json:"balance_after,omitempty"`
	Description       string                `json:"description"`
	ReferenceID       string                `json:"reference_id,omitempty"`
	ReferenceType     string                `json:"reference_type,omitempty"`
	ExternalPaymentID string                `json:"external_payment_id,omitempty"`
	IdempotencyKey    string                `json:"idempotency_key,omitempty"`
	CorrelationID     string                `json:"correlation_id,omitempty"`
	Status            shared.MovementStatus `json:"status"`
	FailureReason     string                `json:"failure_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	SettledAt         *time.Time            `json:"settled_at,omitempty"`
}

// NewDebit builds an already-applied debit movement with balance snapshots.
// balanceBefore is the wallet balance read under lock; amount must be positive.
func NewDebit(walletID uuid.UUID, amount, balanceBefore int64, kind shared.MovementKind, referenceID, referenceType, description string) *Movement {
	after := balanceBefore - amount
	now := time.Now()
	return &Movement{
		ID:            uuid.New(),
		WalletID:      walletID,
		Kind:          kind,
		Amount:        -amount,
		BalanceBefore: &balanceBefore,
		BalanceAfter:  &after,
		Description:   description,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		Status:        shared.MovementStatusApproved,
		CreatedAt:     now,
		SettledAt:     &now,
	}
}

// NewCredit builds an already-applied credit movement with balance snapshots
func NewCredit(walletID uuid.UUID, amount, balanceBefore int64, kind shared.MovementKind, referenceID, description string) *Movement {
	after := balanceBefore + amount
	now := time.Now()
	return &Movement{
		ID:            uuid.New(),
		WalletID:      walletID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: &balanceBefore,
		BalanceAfter:  &after,
		Description:   description,
		ReferenceID:   referenceID,
		Status:        shared.MovementStatusApproved,
		CreatedAt:     now,
		SettledAt:     &now,
	}
}

// NewPendingDeposit builds a deposit movement awaiting gateway settlement.
// No snapshots yet: the balance is untouched until the gateway confirms.
func NewPendingDeposit(walletID uuid.UUID, amount int64, externalPaymentID, description string) *Movement {
	return &Movement{
		ID:                uuid.New(),
		WalletID:          walletID,
		Kind:              shared.MovementKindDeposit,
		Amount:            amount,
		Description:       description,
		ExternalPaymentID: externalPaymentID,
		Status:            shared.MovementStatusPending,
		CreatedAt:         time.Now(),
	}
}

// Settle fills the snapshots and marks the movement APPROVED.
// Used by the settlement worker when the gateway confirms a deposit.
func (m *Movement) Settle(balanceBefore int64) {
	after := balanceBefore + m.Amount
	now := time.Now()
	m.BalanceBefore = &balanceBefore
	m.BalanceAfter = &after
	m.Status = shared.MovementStatusApproved
	m.SettledAt = &now
}
