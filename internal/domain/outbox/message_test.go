package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

func TestNewMessage(t *testing.T) {
	mv := movement.NewDebit(uuid.New(), 4000, 10000, shared.MovementKindPartsPayment, "part-9", "part", "Parts purchase")

	msg, err := NewMessage(mv)
	require.NoError(t, err)

	assert.Equal(t, mv.ID, msg.MovementID)
	assert.Equal(t, mv.WalletID, msg.WalletID)
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Equal(t, 0, msg.Attempts)
	assert.NotEmpty(t, msg.Payload)

	decoded, err := msg.GetMovement()
	require.NoError(t, err)
	assert.Equal(t, mv.ID, decoded.ID)
	assert.Equal(t, mv.Amount, decoded.Amount)
	assert.Equal(t, mv.Status, decoded.Status)
}

func TestMessage_StatusTransitions(t *testing.T) {
	mv := movement.NewCredit(uuid.New(), 100, 0, shared.MovementKindBonus, "", "Signup bonus")
	msg, err := NewMessage(mv)
	require.NoError(t, err)

	msg.IncrementAttempts()
	assert.Equal(t, 1, msg.Attempts)
	assert.NotNil(t, msg.LastAttemptAt)

	msg.MarkAsProcessed()
	assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)

	msg.MarkAsFailed()
	assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
}

func TestMessage_GetMovement_BadPayload(t *testing.T) {
	msg := &Message{Payload: []byte("{not-json")}
	_, err := msg.GetMovement()
	assert.Error(t, err)
}
