package movement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

// Repository manages movement persistence. History reads are newest-first
// within one wallet; no ordering is guaranteed across wallets.
type Repository interface {
	Create(ctx context.Context, m *Movement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Movement, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*Movement, error)
	ListByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*Movement, error)
	CountByWalletID(ctx context.Context, walletID uuid.UUID) (int64, error)

	// MarkSettled transitions a PENDING movement to APPROVED and fills the
	// balance snapshots. The update is conditional on the current status, so
	// a replayed settlement affects zero rows and returns ErrNotPending.
	MarkSettled(ctx context.Context, id uuid.UUID, balanceBefore, balanceAfter int64, settledAt time.Time) error

	// MarkRejected transitions a PENDING movement to REJECTED with a reason
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) error

	// MarkCancelled transitions a non-applied movement to CANCELLED
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string) error

	WithTx(tx pgx.Tx) Repository
}

// ErrMovementNotFound indicates missing movement
type ErrMovementNotFound struct {
	MovementID uuid.UUID
}

func (e ErrMovementNotFound) Error() string {
	return "movement not found: " + e.MovementID.String()
}

// Is implements errors.Is; a zero-valued target matches any ErrMovementNotFound
func (e ErrMovementNotFound) Is(target error) bool {
	t, ok := target.(ErrMovementNotFound)
	if !ok {
		return false
	}
	if t.MovementID == uuid.Nil {
		return true
	}
	return e.MovementID == t.MovementID
}

// ErrNotPending indicates a status transition attempted on a movement that
// already left the PENDING state
type ErrNotPending struct {
	MovementID uuid.UUID
	Status     shared.MovementStatus
}

func (e ErrNotPending) Error() string {
	return "movement " + e.MovementID.String() + " is not pending (status: " + string(e.Status) + ")"
}

// Is implements errors.Is; a zero-valued target matches any ErrNotPending
func (e ErrNotPending) Is(target error) bool {
	t, ok := target.(ErrNotPending)
	if !ok {
		return false
	}
	if t.MovementID == uuid.Nil {
		return true
	}
	return e.MovementID == t.MovementID
}

// ErrDuplicateMovement indicates idempotency key uniqueness violation
type ErrDuplicateMovement struct {
	IdempotencyKey string
}

func (e ErrDuplicateMovement) Error() string {
	return "movement with idempotency key already exists: " + e.IdempotencyKey
}
