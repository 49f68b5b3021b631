package movement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

func TestNewDebit(t *testing.T) {
	walletID := uuid.New()
	m := NewDebit(walletID, 4000, 10000, shared.MovementKindServicePayment, "svc-1", "service_order", "Service order payment")

	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, walletID, m.WalletID)
	assert.Equal(t, int64(-4000), m.Amount, "debit amount is stored as negative delta")
	require.NotNil(t, m.BalanceBefore)
	require.NotNil(t, m.BalanceAfter)
	assert.Equal(t, int64(10000), *m.BalanceBefore)
	assert.Equal(t, int64(6000), *m.BalanceAfter)
	assert.Equal(t, shared.MovementStatusApproved, m.Status)
	assert.Equal(t, "svc-1", m.ReferenceID)
	assert.Equal(t, "service_order", m.ReferenceType)
	assert.NotNil(t, m.SettledAt)
}

func TestNewCredit(t *testing.T) {
	walletID := uuid.New()
	m := NewCredit(walletID, 2500, 1000, shared.MovementKindRefund, "svc-2", "Refund for cancelled order")

	assert.Equal(t, int64(2500), m.Amount)
	require.NotNil(t, m.BalanceBefore)
	require.NotNil(t, m.BalanceAfter)
	assert.Equal(t, int64(1000), *m.BalanceBefore)
	assert.Equal(t, int64(3500), *m.BalanceAfter)
	assert.Equal(t, shared.MovementStatusApproved, m.Status)
}

func TestNewPendingDeposit(t *testing.T) {
	walletID := uuid.New()
	m := NewPendingDeposit(walletID, 5000, "gw-session-123", "Wallet top-up")

	assert.Equal(t, shared.MovementStatusPending, m.Status)
	assert.Equal(t, int64(5000), m.Amount)
	assert.Equal(t, "gw-session-123", m.ExternalPaymentID)
	assert.Nil(t, m.BalanceBefore, "pending deposit has no snapshots until settlement")
	assert.Nil(t, m.BalanceAfter)
	assert.Nil(t, m.SettledAt)
}

func TestMovement_Settle(t *testing.T) {
	m := NewPendingDeposit(uuid.New(), 5000, "gw-session-123", "Wallet top-up")

	m.Settle(2000)

	assert.Equal(t, shared.MovementStatusApproved, m.Status)
	require.NotNil(t, m.BalanceBefore)
	require.NotNil(t, m.BalanceAfter)
	assert.Equal(t, int64(2000), *m.BalanceBefore)
	assert.Equal(t, int64(7000), *m.BalanceAfter)
	assert.NotNil(t, m.SettledAt)
}
