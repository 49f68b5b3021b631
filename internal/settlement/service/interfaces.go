package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
)

// ProcessingService defines the interface for processing settlement events.
type ProcessingService interface {
	ProcessSettlement(ctx context.Context, event *shared.SettlementEvent) error
}

// SettlementValidator validates settlement events before processing
type SettlementValidator interface {
	Validate(ctx context.Context, event *shared.SettlementEvent) error
	CheckAlreadySettled(ctx context.Context, event *shared.SettlementEvent) (bool, error)
}

// WalletApplier credits the wallet and settles the movement inside a
// database transaction
type WalletApplier interface {
	ApplyDeposit(ctx context.Context, tx pgx.Tx, event *shared.SettlementEvent) (*wallet.Wallet, *movement.Movement, error)
}

// AuditManager handles the creation of audit outbox entries for settled movements
type AuditManager interface {
	CreateAuditEntry(ctx context.Context, tx pgx.Tx, m *movement.Movement) error
}

// FailureRecorder handles recording failed or rejected settlements
type FailureRecorder interface {
	RecordFailure(ctx context.Context, event *shared.SettlementEvent, failureReason string) error
}
