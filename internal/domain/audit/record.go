package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

// Record is the MongoDB replica of an applied movement. It is written by the
// audit poller from the outbox, never directly by a request path, so the
// transactional store stays the single source of truth.
type Record struct {
	MovementID        uuid.UUID             `json:"movement_id" bson:"movement_id"`
	WalletID          uuid.UUID             `json:"wallet_id" bson:"wallet_id"`
	Kind              shared.MovementKind   `json:"kind" bson:"kind"`
	Amount            int64                 `json:"amount" bson:"amount"` // Signed delta in minor units
	BalanceBefore     *int64                `json:"balance_before,omitempty" bson:"balance_before,omitempty"`
	BalanceAfter      *int64                `json:"balance_after,omitempty" bson:"balance_after,omitempty"`
	Description       string                `json:"description" bson:"description"`
	ReferenceID       string                `json:"reference_id,omitempty" bson:"reference_id,omitempty"`
	ReferenceType     string                `json:"reference_type,omitempty" bson:"reference_type,omitempty"`
	ExternalPaymentID string                `json:"external_payment_id,omitempty" bson:"external_payment_id,omitempty"`
	CorrelationID     string                `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Status            shared.MovementStatus `json:"status" bson:"status"`
	FailureReason     string                `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at" bson:"created_at"`
	SettledAt         *time.Time            `json:"settled_at,omitempty" bson:"settled_at,omitempty"`
	RecordedAt        time.Time             `json:"recorded_at" bson:"recorded_at"`
}

// NewRecord builds an audit record from a movement snapshot
func NewRecord(m *movement.Movement) *Record {
	return &Record{
		MovementID:        m.ID,
		WalletID:          m.WalletID,
		Kind:              m.Kind,
		Amount:            m.Amount,
		BalanceBefore:     m.BalanceBefore,
		BalanceAfter:      m.BalanceAfter,
		Description:       m.Description,
		ReferenceID:       m.ReferenceID,
		ReferenceType:     m.ReferenceType,
		ExternalPaymentID: m.ExternalPaymentID,
		CorrelationID:     m.CorrelationID,
		Status:            m.Status,
		FailureReason:     m.FailureReason,
		CreatedAt:         m.CreatedAt,
		SettledAt:         m.SettledAt,
		RecordedAt:        time.Now(),
	}
}
