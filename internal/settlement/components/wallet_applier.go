package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
	"github.com/fieldserv/wallet-ledger/internal/settlement/service"
)

// WalletApplierImpl implements the WalletApplier interface
type WalletApplierImpl struct {
	walletRepo   wallet.Repository
	movementRepo movement.Repository
	logger       *slog.Logger
}

// NewWalletApplier creates a new WalletApplierImpl
func NewWalletApplier(walletRepo wallet.Repository, movementRepo movement.Repository, logger *slog.Logger) service.WalletApplier {
	return &WalletApplierImpl{
		walletRepo:   walletRepo,
		movementRepo: movementRepo,
		logger:       logger,
	}
}

// ApplyDeposit locks the wallet, settles the pending movement and credits the
// amount. The movement transition runs first: it is conditional on PENDING
// status, so a replayed settlement fails there before any balance change.
func (a *WalletApplierImpl) ApplyDeposit(ctx context.Context, tx pgx.Tx, event *shared.SettlementEvent) (*wallet.Wallet, *movement.Movement, error) {
	logger := a.logger
	if event.CorrelationID != "" {
		logger = a.logger.With("correlation_id", event.CorrelationID)
	}

	// Use the repositories with the transaction
	walletRepoTx := a.walletRepo.WithTx(tx)
	movementRepoTx := a.movementRepo.WithTx(tx)

	// Lock the wallet for update
	lockedWallet, err := walletRepoTx.LockForUpdate(ctx, event.WalletID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			logger.Warn("Wallet not found for lock", "movement_id", event.MovementID.String(), "wallet_id", event.WalletID.String(), "original_error", err)
			return nil, nil, err
		}
		logger.Error("Failed to lock wallet", "movement_id", event.MovementID.String(), "wallet_id", event.WalletID.String(), "error", err)
		return nil, nil, fmt.Errorf("failed to lock wallet %s: %w", event.WalletID.String(), err)
	}
	logger.Info("Wallet locked", "movement_id", event.MovementID.String(), "wallet_id", lockedWallet.ID.String(), "bal", lockedWallet.Balance, "ver", lockedWallet.Version)

	balanceBefore := lockedWallet.Balance

	// Apply the credit to the wallet model
	if creditErr := lockedWallet.Credit(event.Amount); creditErr != nil {
		logger.Error("Failed to apply deposit to wallet model", "movement_id", event.MovementID.String(), "error", creditErr)
		return nil, nil, creditErr
	}

	// Settle the movement, conditional on PENDING status
	settledAt := time.Now()
	if err = movementRepoTx.MarkSettled(ctx, event.MovementID, balanceBefore, lockedWallet.Balance, settledAt); err != nil {
		if errors.Is(err, movement.ErrNotPending{}) {
			logger.Warn("Movement left PENDING before this settlement", "movement_id", event.MovementID.String())
		} else {
			logger.Error("Failed to settle movement in DB", "movement_id", event.MovementID.String(), "error", err)
		}
		return nil, nil, err
	}

	// Persist wallet changes
	if err = walletRepoTx.Update(ctx, lockedWallet); err != nil {
		if errors.Is(err, wallet.ErrConcurrentModification{WalletID: lockedWallet.ID}) {
			logger.Warn("Concurrent modification on wallet update", "movement_id", event.MovementID.String(), "wallet_id", lockedWallet.ID.String())
		} else {
			logger.Error("Failed to update wallet in DB", "movement_id", event.MovementID.String(), "wallet_id", lockedWallet.ID.String(), "error", err)
		}
		return nil, nil, err
	}
	logger.Info("Wallet credited in DB", "movement_id", event.MovementID.String(), "wallet_id", lockedWallet.ID.String(), "new_bal", lockedWallet.Balance, "new_ver", lockedWallet.Version)

	// Read the settled movement back for the audit trail
	settledMovement, err := movementRepoTx.GetByID(ctx, event.MovementID)
	if err != nil {
		logger.Error("Failed to read settled movement", "movement_id", event.MovementID.String(), "error", err)
		return nil, nil, err
	}

	return lockedWallet, settledMovement, nil
}
