// Package postgres provides PostgreSQL implementations of the domain
// repositories. Wallets and movements live in the same database so balance
// mutations and their audit entries can share one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
	"github.com/fieldserv/wallet-ledger/internal/platform/persistence"
)

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const walletColumns = `id, owner_id, balance, blocked_balance, version, created_at, updated_at`

func (r *WalletRepository) scanWallet(row pgx.Row) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := row.Scan(
		&w.ID,
		&w.OwnerID,
		&w.Balance,
		&w.BlockedBalance,
		&w.Version,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create stores a new wallet. The owner_id unique constraint rejects a
// second wallet for the same owner.
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (id, owner_id, balance, blocked_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.OwnerID,
		w.Balance,
		w.BlockedBalance,
		w.Version,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create wallet", "owner_id", w.OwnerID.String(), "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = $1
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return w, nil
}

// GetByOwnerID retrieves the wallet belonging to an owner
func (r *WalletRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE owner_id = $1
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{OwnerID: ownerID}
		}
		r.logger.Error("Failed to get wallet by owner", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet by owner: %w", err)
	}

	return w, nil
}

// CreateIfAbsent lazily creates the owner's wallet. ON CONFLICT DO NOTHING
// keeps concurrent first-access calls from creating duplicates; the follow-up
// read returns whichever row won.
func (r *WalletRepository) CreateIfAbsent(ctx context.Context, w *wallet.Wallet) (*wallet.Wallet, error) {
	query := `
		INSERT INTO wallets (id, owner_id, balance, blocked_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id) DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.OwnerID,
		w.Balance,
		w.BlockedBalance,
		w.Version,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to lazily create wallet", "owner_id", w.OwnerID.String(), "error", err)
		return nil, fmt.Errorf("failed to lazily create wallet: %w", err)
	}

	return r.GetByOwnerID(ctx, w.OwnerID)
}

// Update persists the wallet using optimistic locking.
// Returns ErrConcurrentModification if the row changed since it was read.
func (r *WalletRepository) Update(ctx context.Context, w *wallet.Wallet) error {
	query := `
		UPDATE wallets
		SET balance = $1, blocked_balance = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`

	result, err := r.querier.Exec(ctx, query,
		w.Balance,
		w.BlockedBalance,
		w.Version,
		w.UpdatedAt,
		w.ID,
		w.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update wallet", "id", w.ID.String(), "error", err)
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return wallet.ErrConcurrentModification{WalletID: w.ID}
	}

	return nil
}

// LockForUpdate obtains a pessimistic lock on the wallet row and returns its
// current state. Must run inside a transaction.
func (r *WalletRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to lock wallet for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet for update: %w", err)
	}

	return w, nil
}

// LockByOwnerForUpdate obtains the same pessimistic lock addressed by owner id
func (r *WalletRepository) LockByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE owner_id = $1
		FOR UPDATE
	`

	w, err := r.scanWallet(r.querier.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{OwnerID: ownerID}
		}
		r.logger.Error("Failed to lock wallet by owner", "owner_id", ownerID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock wallet by owner: %w", err)
	}

	return w, nil
}
