package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrBlockedFunds  = errors.New("blocked balance cannot exceed total balance")
)

// Wallet holds the monetary balance of one owner. Amounts are stored in
// minor units (cents). BlockedBalance is the slice of Balance reserved for
// pending settlement and not available for spend.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Balance        int64     `json:"balance"`
	BlockedBalance int64     `json:"blocked_balance"`
	Version        int       `json:"version"` // For optimistic locking
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewWallet creates an empty wallet for the given owner
func NewWallet(ownerID uuid.UUID) *Wallet {
	now := time.Now()
	return &Wallet{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Balance:        0,
		BlockedBalance: 0,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Available returns the spendable balance: total balance minus blocked funds
func (w *Wallet) Available() int64 {
	return w.Balance - w.BlockedBalance
}

// CanDebit reports whether the available balance covers the given amount.
// Pure check, usable without touching storage.
func (w *Wallet) CanDebit(amount int64) bool {
	return amount > 0 && w.Available() >= amount
}

// Credit adds the amount to the wallet balance
func (w *Wallet) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	w.Balance += amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// Debit subtracts the amount from the wallet balance. Blocked funds are
// excluded from spendable balance, so the check runs against Available.
func (w *Wallet) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if !w.CanDebit(amount) {
		return ErrInsufficientFunds{WalletID: w.ID, Available: w.Available(), Requested: amount}
	}

	w.Balance -= amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// Block reserves part of the balance, shrinking the available balance
func (w *Wallet) Block(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if w.BlockedBalance+amount > w.Balance {
		return ErrBlockedFunds
	}

	w.BlockedBalance += amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}

// Unblock releases previously reserved funds
func (w *Wallet) Unblock(amount int64) error {
	if amount <= 0 || amount > w.BlockedBalance {
		return ErrInvalidAmount
	}

	w.BlockedBalance -= amount
	w.UpdatedAt = time.Now()
	w.Version++
	return nil
}
