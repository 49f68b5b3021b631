package wallet

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines wallet persistence operations
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*Wallet, error)

	// CreateIfAbsent inserts a wallet for the owner unless one already exists.
	// Returns the persisted wallet either way; safe under concurrent callers.
	CreateIfAbsent(ctx context.Context, w *Wallet) (*Wallet, error)

	// Update persists the wallet guarded by its previous version (optimistic locking)
	Update(ctx context.Context, w *Wallet) error

	// LockForUpdate acquires a row lock on the wallet for transactional read-modify-write
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Wallet, error)

	// LockByOwnerForUpdate acquires the same row lock addressed by owner
	LockByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*Wallet, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrWalletNotFound indicates missing wallet
type ErrWalletNotFound struct {
	WalletID uuid.UUID
	OwnerID  uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	if e.OwnerID != uuid.Nil {
		return "wallet not found for owner: " + e.OwnerID.String()
	}
	return "wallet not found: " + e.WalletID.String()
}

// Is implements errors.Is; a zero-valued target matches any ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.WalletID == uuid.Nil && t.OwnerID == uuid.Nil {
		return true
	}
	return e.WalletID == t.WalletID && e.OwnerID == t.OwnerID
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	WalletID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for wallet: " + e.WalletID.String()
}

// ErrInsufficientFunds indicates a debit exceeding the available balance
type ErrInsufficientFunds struct {
	WalletID  uuid.UUID
	Available int64
	Requested int64
}

func (e ErrInsufficientFunds) Error() string {
	return "insufficient funds in wallet " + e.WalletID.String() +
		": available " + strconv.FormatInt(e.Available, 10) +
		", requested " + strconv.FormatInt(e.Requested, 10)
}

// Is implements errors.Is; a zero-valued target matches any ErrInsufficientFunds
func (e ErrInsufficientFunds) Is(target error) bool {
	t, ok := target.(ErrInsufficientFunds)
	if !ok {
		return false
	}
	if t.WalletID == uuid.Nil {
		return true
	}
	return e.WalletID == t.WalletID
}
