package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

// Message stores an applied movement for reliable replication into the
// Mongo audit trail. Written in the same transaction as the movement.
type Message struct {
	ID            int64               `json:"id"`
	MovementID    uuid.UUID           `json:"movement_id"`
	WalletID      uuid.UUID           `json:"wallet_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(m *movement.Movement) (*Message, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	return &Message{
		MovementID: m.ID,
		WalletID:   m.WalletID,
		Payload:    payload,
		Status:     shared.OutboxStatusPending,
		Attempts:   0,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetMovement extracts the movement from the payload
func (m *Message) GetMovement() (*movement.Movement, error) {
	var mv movement.Movement
	if err := json.Unmarshal(m.Payload, &mv); err != nil {
		return nil, err
	}
	return &mv, nil
}
