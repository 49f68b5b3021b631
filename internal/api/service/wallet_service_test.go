package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/outbox"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
)

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) CreateIfAbsent(ctx context.Context, w *wallet.Wallet) (*wallet.Wallet, error) {
	args := m.Called(ctx, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Update(ctx context.Context, w *wallet.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWalletRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) LockByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(wallet.Repository)
}

type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Create(ctx context.Context, mv *movement.Movement) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *MockMovementRepository) GetByID(ctx context.Context, id uuid.UUID) (*movement.Movement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*movement.Movement), args.Error(1)
}

func (m *MockMovementRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*movement.Movement, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*movement.Movement), args.Error(1)
}

func (m *MockMovementRepository) ListByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*movement.Movement, error) {
	args := m.Called(ctx, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*movement.Movement), args.Error(1)
}

func (m *MockMovementRepository) CountByWalletID(ctx context.Context, walletID uuid.UUID) (int64, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMovementRepository) MarkSettled(ctx context.Context, id uuid.UUID, balanceBefore, balanceAfter int64, settledAt time.Time) error {
	args := m.Called(ctx, id, balanceBefore, balanceAfter, settledAt)
	return args.Error(0)
}

func (m *MockMovementRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockMovementRepository) MarkCancelled(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockMovementRepository) WithTx(tx pgx.Tx) movement.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(movement.Repository)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetByMovementID(ctx context.Context, movementID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, movementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(outbox.Repository)
}

// passthroughTxRunner drives the transaction closure directly. The
// repositories are mocked, so no live transaction is involved; errors from
// the closure propagate the way a rolled-back transaction's would.
type passthroughTxRunner struct{}

func (passthroughTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func newWalletServiceForTest(walletRepo wallet.Repository, movementRepo movement.Repository, outboxRepo outbox.Repository) WalletService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return NewWalletService(logger, passthroughTxRunner{}, walletRepo, movementRepo, outboxRepo)
}

func TestWalletServiceImpl_GetOrCreateWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		service := newWalletServiceForTest(mockWalletRepo, new(MockMovementRepository), new(MockOutboxRepository))
		ownerID := uuid.New()
		existing := &wallet.Wallet{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			Balance:   15000,
			Version:   3,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(existing, nil).Once()

		w, err := service.GetOrCreateWallet(ctx, ownerID)

		assert.NoError(t, err)
		assert.Equal(t, existing, w)
		mockWalletRepo.AssertExpectations(t)
	})

	t.Run("PassesFreshWalletForOwner", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		service := newWalletServiceForTest(mockWalletRepo, new(MockMovementRepository), new(MockOutboxRepository))
		ownerID := uuid.New()

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.MatchedBy(func(w *wallet.Wallet) bool {
			return w.OwnerID == ownerID && w.Balance == 0 && w.Version == 1
		})).Return(&wallet.Wallet{ID: uuid.New(), OwnerID: ownerID}, nil).Once()

		_, err := service.GetOrCreateWallet(ctx, ownerID)

		assert.NoError(t, err)
		mockWalletRepo.AssertExpectations(t)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		service := newWalletServiceForTest(mockWalletRepo, new(MockMovementRepository), new(MockOutboxRepository))
		repoErr := errors.New("database error")

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(nil, repoErr).Once()

		w, err := service.GetOrCreateWallet(ctx, uuid.New())

		assert.Error(t, err)
		assert.Nil(t, w)
		assert.Equal(t, repoErr, err)
		mockWalletRepo.AssertExpectations(t)
	})
}

func TestWalletServiceImpl_ListMovements(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, new(MockOutboxRepository))
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 10000}
		expected := []*movement.Movement{
			movement.NewCredit(w.ID, 5000, 5000, shared.MovementKindDeposit, "", "funding"),
			movement.NewDebit(w.ID, 2500, 10000, shared.MovementKindServicePayment, "ord-1", "order", "oil change"),
		}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockMovementRepo.On("ListByWalletID", ctx, w.ID, 50, 0).Return(expected, nil).Once()
		mockMovementRepo.On("CountByWalletID", ctx, w.ID).Return(int64(2), nil).Once()

		movements, total, err := service.ListMovements(ctx, ownerID, 1, 50)

		assert.NoError(t, err)
		assert.Equal(t, expected, movements)
		assert.Equal(t, int64(2), total)
		mockWalletRepo.AssertExpectations(t)
		mockMovementRepo.AssertExpectations(t)
	})

	t.Run("SecondPageOffset", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, new(MockOutboxRepository))
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: uuid.New()}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockMovementRepo.On("ListByWalletID", ctx, w.ID, 20, 20).Return([]*movement.Movement{}, nil).Once()
		mockMovementRepo.On("CountByWalletID", ctx, w.ID).Return(int64(25), nil).Once()

		movements, total, err := service.ListMovements(ctx, w.OwnerID, 2, 20)

		assert.NoError(t, err)
		assert.Empty(t, movements)
		assert.Equal(t, int64(25), total)
		mockMovementRepo.AssertExpectations(t)
	})

	t.Run("ListError", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, new(MockOutboxRepository))
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: uuid.New()}
		repoErr := errors.New("database error")

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockMovementRepo.On("ListByWalletID", ctx, w.ID, 50, 0).Return(nil, repoErr).Once()

		movements, total, err := service.ListMovements(ctx, w.OwnerID, 1, 50)

		assert.Error(t, err)
		assert.Nil(t, movements)
		assert.Zero(t, total)
		mockMovementRepo.AssertNotCalled(t, "CountByWalletID", mock.Anything, mock.Anything)
	})
}

func TestWalletServiceImpl_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessAppliesMovementAndSnapshots", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		mockOutboxRepo := new(MockOutboxRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, mockOutboxRepo)
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 10000, Version: 2}
		locked := &wallet.Wallet{ID: w.ID, OwnerID: ownerID, Balance: 10000, Version: 2}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockWalletRepo.On("WithTx", mock.Anything).Return(mockWalletRepo)
		mockWalletRepo.On("LockForUpdate", ctx, w.ID).Return(locked, nil).Once()
		mockMovementRepo.On("WithTx", mock.Anything).Return(mockMovementRepo)
		mockMovementRepo.On("Create", ctx, mock.MatchedBy(func(m *movement.Movement) bool {
			return m.WalletID == w.ID &&
				m.Amount == -2500 &&
				m.BalanceBefore != nil && *m.BalanceBefore == 10000 &&
				m.BalanceAfter != nil && *m.BalanceAfter == 7500 &&
				m.Status == shared.MovementStatusApproved
		})).Return(nil).Once()
		mockWalletRepo.On("Update", ctx, mock.MatchedBy(func(updated *wallet.Wallet) bool {
			return updated.ID == w.ID && updated.Balance == 7500
		})).Return(nil).Once()
		mockOutboxRepo.On("WithTx", mock.Anything).Return(mockOutboxRepo)
		mockOutboxRepo.On("Create", ctx, mock.MatchedBy(func(msg *outbox.Message) bool {
			return msg.WalletID == w.ID
		})).Return(nil).Once()

		m, returnedWallet, err := service.Debit(ctx, &ChargeParams{
			OwnerID:       ownerID,
			Amount:        2500,
			Kind:          shared.MovementKindServicePayment,
			ReferenceID:   "ord-1",
			ReferenceType: "order",
		})

		assert.NoError(t, err)
		assert.Equal(t, int64(-2500), m.Amount)
		assert.Equal(t, int64(7500), *m.BalanceAfter)
		assert.Equal(t, int64(7500), returnedWallet.Balance)
		mockWalletRepo.AssertExpectations(t)
		mockMovementRepo.AssertExpectations(t)
		mockOutboxRepo.AssertExpectations(t)
	})

	t.Run("InsufficientFundsLeavesNoWrites", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		mockOutboxRepo := new(MockOutboxRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, mockOutboxRepo)
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 2000, Version: 1}
		locked := &wallet.Wallet{ID: w.ID, OwnerID: ownerID, Balance: 2000, Version: 1}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockWalletRepo.On("WithTx", mock.Anything).Return(mockWalletRepo)
		mockWalletRepo.On("LockForUpdate", ctx, w.ID).Return(locked, nil).Once()

		m, returnedWallet, err := service.Debit(ctx, &ChargeParams{
			OwnerID: ownerID,
			Amount:  2500,
			Kind:    shared.MovementKindServicePayment,
		})

		assert.Nil(t, m)
		assert.Nil(t, returnedWallet)
		var insufficientErr wallet.ErrInsufficientFunds
		assert.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, int64(2000), insufficientErr.Available)
		assert.Equal(t, int64(2500), insufficientErr.Requested)
		mockMovementRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mockWalletRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		mockOutboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("BlockedFundsReduceAvailability", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		mockOutboxRepo := new(MockOutboxRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, mockOutboxRepo)
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 3000, BlockedBalance: 1000, Version: 1}
		locked := &wallet.Wallet{ID: w.ID, OwnerID: ownerID, Balance: 3000, BlockedBalance: 1000, Version: 1}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockWalletRepo.On("WithTx", mock.Anything).Return(mockWalletRepo)
		mockWalletRepo.On("LockForUpdate", ctx, w.ID).Return(locked, nil).Once()

		_, _, err := service.Debit(ctx, &ChargeParams{
			OwnerID: ownerID,
			Amount:  2500,
			Kind:    shared.MovementKindServicePayment,
		})

		var insufficientErr wallet.ErrInsufficientFunds
		assert.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, int64(2000), insufficientErr.Available)
		mockMovementRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("UpdateConflictAbortsBeforeAudit", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		mockOutboxRepo := new(MockOutboxRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, mockOutboxRepo)
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 10000, Version: 2}
		locked := &wallet.Wallet{ID: w.ID, OwnerID: ownerID, Balance: 10000, Version: 2}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockWalletRepo.On("WithTx", mock.Anything).Return(mockWalletRepo)
		mockWalletRepo.On("LockForUpdate", ctx, w.ID).Return(locked, nil).Once()
		mockMovementRepo.On("WithTx", mock.Anything).Return(mockMovementRepo)
		mockMovementRepo.On("Create", ctx, mock.AnythingOfType("*movement.Movement")).Return(nil).Once()
		mockWalletRepo.On("Update", ctx, mock.AnythingOfType("*wallet.Wallet")).
			Return(wallet.ErrConcurrentModification{WalletID: w.ID}).Once()

		m, returnedWallet, err := service.Debit(ctx, &ChargeParams{
			OwnerID: ownerID,
			Amount:  2500,
			Kind:    shared.MovementKindServicePayment,
		})

		assert.Nil(t, m)
		assert.Nil(t, returnedWallet)
		var conflictErr wallet.ErrConcurrentModification
		assert.ErrorAs(t, err, &conflictErr)
		mockOutboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("DuplicateKeyInsertReturnsWinner", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		mockOutboxRepo := new(MockOutboxRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, mockOutboxRepo)
		idempotencyKey := uuid.New().String()
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 7500, Version: 3}
		locked := &wallet.Wallet{ID: w.ID, OwnerID: ownerID, Balance: 10000, Version: 2}
		winner := movement.NewDebit(w.ID, 2500, 10000, shared.MovementKindServicePayment, "ord-1", "order", "")
		winner.IdempotencyKey = idempotencyKey

		// First lookup misses, the insert hits the unique index, the re-read
		// finds the movement the concurrent request committed
		mockMovementRepo.On("GetByIdempotencyKey", ctx, idempotencyKey).Return(nil, nil).Once()
		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockWalletRepo.On("WithTx", mock.Anything).Return(mockWalletRepo)
		mockWalletRepo.On("LockForUpdate", ctx, w.ID).Return(locked, nil).Once()
		mockMovementRepo.On("WithTx", mock.Anything).Return(mockMovementRepo)
		mockMovementRepo.On("Create", ctx, mock.AnythingOfType("*movement.Movement")).
			Return(movement.ErrDuplicateMovement{IdempotencyKey: idempotencyKey}).Once()
		mockMovementRepo.On("GetByIdempotencyKey", ctx, idempotencyKey).Return(winner, nil).Once()
		mockWalletRepo.On("GetByID", ctx, w.ID).Return(w, nil).Once()

		m, returnedWallet, err := service.Debit(ctx, &ChargeParams{
			OwnerID:        ownerID,
			Amount:         2500,
			Kind:           shared.MovementKindServicePayment,
			IdempotencyKey: idempotencyKey,
		})

		assert.NoError(t, err)
		assert.Equal(t, winner, m)
		assert.Equal(t, w, returnedWallet)
		mockWalletRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		mockOutboxRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mockMovementRepo.AssertExpectations(t)
	})
}

func TestWalletServiceImpl_Credit(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessAppliesMovementAndSnapshots", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		mockOutboxRepo := new(MockOutboxRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, mockOutboxRepo)
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 10000, Version: 2}
		locked := &wallet.Wallet{ID: w.ID, OwnerID: ownerID, Balance: 10000, Version: 2}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockWalletRepo.On("WithTx", mock.Anything).Return(mockWalletRepo)
		mockWalletRepo.On("LockForUpdate", ctx, w.ID).Return(locked, nil).Once()
		mockMovementRepo.On("WithTx", mock.Anything).Return(mockMovementRepo)
		mockMovementRepo.On("Create", ctx, mock.MatchedBy(func(m *movement.Movement) bool {
			return m.WalletID == w.ID &&
				m.Amount == 2500 &&
				m.BalanceBefore != nil && *m.BalanceBefore == 10000 &&
				m.BalanceAfter != nil && *m.BalanceAfter == 12500 &&
				m.Status == shared.MovementStatusApproved
		})).Return(nil).Once()
		mockWalletRepo.On("Update", ctx, mock.MatchedBy(func(updated *wallet.Wallet) bool {
			return updated.ID == w.ID && updated.Balance == 12500
		})).Return(nil).Once()
		mockOutboxRepo.On("WithTx", mock.Anything).Return(mockOutboxRepo)
		mockOutboxRepo.On("Create", ctx, mock.MatchedBy(func(msg *outbox.Message) bool {
			return msg.WalletID == w.ID
		})).Return(nil).Once()

		m, returnedWallet, err := service.Credit(ctx, &ChargeParams{
			OwnerID:     ownerID,
			Amount:      2500,
			Kind:        shared.MovementKindRefund,
			ReferenceID: "ord-9",
		})

		assert.NoError(t, err)
		assert.Equal(t, int64(2500), m.Amount)
		assert.Equal(t, int64(12500), *m.BalanceAfter)
		assert.Equal(t, int64(12500), returnedWallet.Balance)
		mockWalletRepo.AssertExpectations(t)
		mockMovementRepo.AssertExpectations(t)
		mockOutboxRepo.AssertExpectations(t)
	})

	t.Run("InvalidAmountRejected", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		mockOutboxRepo := new(MockOutboxRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, mockOutboxRepo)
		ownerID := uuid.New()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: 10000}
		locked := &wallet.Wallet{ID: w.ID, OwnerID: ownerID, Balance: 10000}

		mockWalletRepo.On("CreateIfAbsent", ctx, mock.AnythingOfType("*wallet.Wallet")).Return(w, nil).Once()
		mockWalletRepo.On("WithTx", mock.Anything).Return(mockWalletRepo)
		mockWalletRepo.On("LockForUpdate", ctx, w.ID).Return(locked, nil).Once()

		m, returnedWallet, err := service.Credit(ctx, &ChargeParams{
			OwnerID: ownerID,
			Amount:  -100,
			Kind:    shared.MovementKindRefund,
		})

		assert.Nil(t, m)
		assert.Nil(t, returnedWallet)
		assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
		mockMovementRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestWalletServiceImpl_Debit_Idempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("ExistingMovementReturnedWithoutRetrying", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, new(MockOutboxRepository))
		idempotencyKey := uuid.New().String()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: uuid.New(), Balance: 7500}
		existing := movement.NewDebit(w.ID, 2500, 10000, shared.MovementKindServicePayment, "ord-9", "order", "")
		existing.IdempotencyKey = idempotencyKey

		mockMovementRepo.On("GetByIdempotencyKey", ctx, idempotencyKey).Return(existing, nil).Once()
		mockWalletRepo.On("GetByID", ctx, w.ID).Return(w, nil).Once()

		m, returnedWallet, err := service.Debit(ctx, &ChargeParams{
			OwnerID:        w.OwnerID,
			Amount:         2500,
			Kind:           shared.MovementKindServicePayment,
			IdempotencyKey: idempotencyKey,
		})

		assert.NoError(t, err)
		assert.Equal(t, existing, m)
		assert.Equal(t, w, returnedWallet)
		mockWalletRepo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
		mockWalletRepo.AssertNotCalled(t, "LockForUpdate", mock.Anything, mock.Anything)
		mockMovementRepo.AssertExpectations(t)
	})

	t.Run("IdempotencyLookupError", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, new(MockOutboxRepository))
		idempotencyKey := uuid.New().String()
		repoErr := errors.New("database error")

		mockMovementRepo.On("GetByIdempotencyKey", ctx, idempotencyKey).Return(nil, repoErr).Once()

		m, returnedWallet, err := service.Debit(ctx, &ChargeParams{
			OwnerID:        uuid.New(),
			Amount:         1000,
			Kind:           shared.MovementKindServicePayment,
			IdempotencyKey: idempotencyKey,
		})

		assert.Error(t, err)
		assert.Nil(t, m)
		assert.Nil(t, returnedWallet)
		mockWalletRepo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
	})
}

func TestWalletServiceImpl_Credit_Idempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("ExistingMovementReturnedWithoutRetrying", func(t *testing.T) {
		mockWalletRepo := new(MockWalletRepository)
		mockMovementRepo := new(MockMovementRepository)
		service := newWalletServiceForTest(mockWalletRepo, mockMovementRepo, new(MockOutboxRepository))
		idempotencyKey := uuid.New().String()
		w := &wallet.Wallet{ID: uuid.New(), OwnerID: uuid.New(), Balance: 12500}
		existing := movement.NewCredit(w.ID, 2500, 10000, shared.MovementKindRefund, "ord-9", "refund for order")
		existing.IdempotencyKey = idempotencyKey

		mockMovementRepo.On("GetByIdempotencyKey", ctx, idempotencyKey).Return(existing, nil).Once()
		mockWalletRepo.On("GetByID", ctx, w.ID).Return(w, nil).Once()

		m, returnedWallet, err := service.Credit(ctx, &ChargeParams{
			OwnerID:        w.OwnerID,
			Amount:         2500,
			Kind:           shared.MovementKindRefund,
			IdempotencyKey: idempotencyKey,
		})

		assert.NoError(t, err)
		assert.Equal(t, existing, m)
		assert.Equal(t, w, returnedWallet)
		mockWalletRepo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
		mockMovementRepo.AssertExpectations(t)
	})
}
