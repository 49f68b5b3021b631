package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
)

// ChargeParams describes a synchronous balance mutation (debit or credit)
type ChargeParams struct {
	OwnerID        uuid.UUID
	Amount         int64 // Minor units, always positive
	Kind           shared.MovementKind
	ReferenceID    string
	ReferenceType  string
	Description    string
	IdempotencyKey string
	CorrelationID  string
}

// DepositParams describes a deposit checkout request
type DepositParams struct {
	OwnerID        uuid.UUID
	Amount         int64 // Minor units, always positive
	Method         shared.PaymentMethod
	Description    string
	IdempotencyKey string
	CorrelationID  string
}

// DepositCheckout bundles the pending movement with the gateway session the
// client should be redirected to
type DepositCheckout struct {
	Movement    *movement.Movement
	SessionID   string
	RedirectURL string
}

// WalletService defines wallet and balance operations
type WalletService interface {
	// GetOrCreateWallet returns the owner's wallet, creating an empty one on
	// first access
	GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error)

	// ListMovements returns the owner's movement history newest-first along
	// with the total count
	ListMovements(ctx context.Context, ownerID uuid.UUID, page, perPage int) ([]*movement.Movement, int64, error)

	// Debit atomically charges the owner's wallet and appends a movement.
	// Returns ErrInsufficientFunds when the available balance cannot cover
	// the amount; the wallet is left untouched in that case.
	Debit(ctx context.Context, params *ChargeParams) (*movement.Movement, *wallet.Wallet, error)

	// Credit atomically adds funds to the owner's wallet and appends a movement
	Credit(ctx context.Context, params *ChargeParams) (*movement.Movement, *wallet.Wallet, error)
}

// DepositService defines the asynchronous deposit flow
type DepositService interface {
	// RequestDeposit opens a gateway checkout and records a PENDING deposit
	// movement. No funds are credited until the gateway settles.
	RequestDeposit(ctx context.Context, params *DepositParams) (*DepositCheckout, error)

	// AcknowledgeSettlement validates a gateway webhook notification and hands
	// it to the settlement pipeline. Idempotent: replays of an already settled
	// movement are accepted and dropped downstream.
	AcknowledgeSettlement(ctx context.Context, event *shared.SettlementEvent) error

	// CancelDeposit abandons a pending deposit before the gateway settles it.
	// Returns ErrNotPending when the deposit already reached a terminal state;
	// an APPROVED deposit must be reversed by a refund instead.
	CancelDeposit(ctx context.Context, ownerID, movementID uuid.UUID) (*movement.Movement, error)
}
