package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository manages audit record persistence with pagination support
type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByMovementID(ctx context.Context, movementID uuid.UUID) (*Record, error)
	GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*Record, error)
	CountByWalletID(ctx context.Context, walletID uuid.UUID) (int64, error)
	GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*Record, error)
}

// ErrRecordNotFound indicates a missing audit record
type ErrRecordNotFound struct {
	MovementID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "audit record not found: " + e.MovementID.String()
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	// A zero-value target matches any ErrRecordNotFound
	if t.MovementID == uuid.Nil {
		return true
	}
	return e.MovementID == t.MovementID
}

// ErrDuplicateRecord indicates movement uniqueness violation in the audit trail
type ErrDuplicateRecord struct {
	MovementID uuid.UUID
}

func (e ErrDuplicateRecord) Error() string {
	return "duplicate audit record: " + e.MovementID.String()
}

// Is implements the errors.Is interface for ErrDuplicateRecord
func (e ErrDuplicateRecord) Is(target error) bool {
	t, ok := target.(ErrDuplicateRecord)
	if !ok {
		return false
	}
	if t.MovementID == uuid.Nil {
		return true
	}
	return e.MovementID == t.MovementID
}
