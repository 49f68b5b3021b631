package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/outbox"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
	"github.com/fieldserv/wallet-ledger/internal/platform/persistence"
)

// TxRunner runs a function inside a single database transaction, rolling
// back when the function returns an error
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ TxRunner = (*persistence.PostgresDB)(nil)

// WalletServiceImpl implements the WalletService interface
type WalletServiceImpl struct {
	db           TxRunner
	walletRepo   wallet.Repository
	movementRepo movement.Repository
	outboxRepo   outbox.Repository
	logger       *slog.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(
	logger *slog.Logger,
	db TxRunner,
	walletRepo wallet.Repository,
	movementRepo movement.Repository,
	outboxRepo outbox.Repository,
) WalletService {
	return &WalletServiceImpl{
		db:           db,
		walletRepo:   walletRepo,
		movementRepo: movementRepo,
		outboxRepo:   outboxRepo,
		logger:       logger,
	}
}

// GetOrCreateWallet returns the owner's wallet, lazily creating an empty one
// on first access. Concurrent first calls converge on a single row.
func (s *WalletServiceImpl) GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID) (*wallet.Wallet, error) {
	return s.walletRepo.CreateIfAbsent(ctx, wallet.NewWallet(ownerID))
}

// ListMovements returns the owner's movement history newest-first with a total count
func (s *WalletServiceImpl) ListMovements(ctx context.Context, ownerID uuid.UUID, page, perPage int) ([]*movement.Movement, int64, error) {
	w, err := s.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage

	movements, err := s.movementRepo.ListByWalletID(ctx, w.ID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.movementRepo.CountByWalletID(ctx, w.ID)
	if err != nil {
		return nil, 0, err
	}

	return movements, total, nil
}

// Debit atomically charges the owner's wallet. The wallet row is locked for
// the duration of the transaction so concurrent debits serialize and the
// available balance can never go negative.
func (s *WalletServiceImpl) Debit(ctx context.Context, params *ChargeParams) (*movement.Movement, *wallet.Wallet, error) {
	if existing, err := s.findByIdempotencyKey(ctx, params.IdempotencyKey); err != nil || existing != nil {
		if existing != nil {
			w, werr := s.walletRepo.GetByID(ctx, existing.WalletID)
			if werr != nil {
				return nil, nil, werr
			}
			return existing, w, nil
		}
		return nil, nil, err
	}

	// Wallet must exist before it can be locked
	w, err := s.GetOrCreateWallet(ctx, params.OwnerID)
	if err != nil {
		return nil, nil, err
	}

	var m *movement.Movement
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txWalletRepo := s.walletRepo.WithTx(tx)

		locked, err := txWalletRepo.LockForUpdate(ctx, w.ID)
		if err != nil {
			return err
		}

		balanceBefore := locked.Balance
		if err := locked.Debit(params.Amount); err != nil {
			return err
		}

		m = movement.NewDebit(locked.ID, params.Amount, balanceBefore, params.Kind,
			params.ReferenceID, params.ReferenceType, params.Description)
		m.IdempotencyKey = params.IdempotencyKey
		m.CorrelationID = params.CorrelationID

		if err := s.movementRepo.WithTx(tx).Create(ctx, m); err != nil {
			return err
		}
		if err := txWalletRepo.Update(ctx, locked); err != nil {
			return err
		}

		w = locked
		return s.enqueueAudit(ctx, tx, m)
	})
	if err != nil {
		var dup movement.ErrDuplicateMovement
		if errors.As(err, &dup) {
			// Lost the insert race to a concurrent request carrying the same
			// key; the winner's movement is this request's result
			return s.replayWinner(ctx, dup.IdempotencyKey)
		}
		return nil, nil, err
	}

	s.logger.Info("Wallet debited",
		"wallet_id", w.ID.String(),
		"movement_id", m.ID.String(),
		"kind", string(params.Kind),
		"amount", params.Amount,
		"balance", w.Balance,
	)
	return m, w, nil
}

// Credit atomically adds funds to the owner's wallet
func (s *WalletServiceImpl) Credit(ctx context.Context, params *ChargeParams) (*movement.Movement, *wallet.Wallet, error) {
	if existing, err := s.findByIdempotencyKey(ctx, params.IdempotencyKey); err != nil || existing != nil {
		if existing != nil {
			w, werr := s.walletRepo.GetByID(ctx, existing.WalletID)
			if werr != nil {
				return nil, nil, werr
			}
			return existing, w, nil
		}
		return nil, nil, err
	}

	w, err := s.GetOrCreateWallet(ctx, params.OwnerID)
	if err != nil {
		return nil, nil, err
	}

	var m *movement.Movement
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txWalletRepo := s.walletRepo.WithTx(tx)

		locked, err := txWalletRepo.LockForUpdate(ctx, w.ID)
		if err != nil {
			return err
		}

		balanceBefore := locked.Balance
		if err := locked.Credit(params.Amount); err != nil {
			return err
		}

		m = movement.NewCredit(locked.ID, params.Amount, balanceBefore, params.Kind,
			params.ReferenceID, params.Description)
		m.IdempotencyKey = params.IdempotencyKey
		m.CorrelationID = params.CorrelationID

		if err := s.movementRepo.WithTx(tx).Create(ctx, m); err != nil {
			return err
		}
		if err := txWalletRepo.Update(ctx, locked); err != nil {
			return err
		}

		w = locked
		return s.enqueueAudit(ctx, tx, m)
	})
	if err != nil {
		var dup movement.ErrDuplicateMovement
		if errors.As(err, &dup) {
			return s.replayWinner(ctx, dup.IdempotencyKey)
		}
		return nil, nil, err
	}

	s.logger.Info("Wallet credited",
		"wallet_id", w.ID.String(),
		"movement_id", m.ID.String(),
		"kind", string(params.Kind),
		"amount", params.Amount,
		"balance", w.Balance,
	)
	return m, w, nil
}

// replayWinner re-reads the movement committed by the concurrent request that
// won the idempotency-key insert race, so both callers observe one movement
func (s *WalletServiceImpl) replayWinner(ctx context.Context, key string) (*movement.Movement, *wallet.Wallet, error) {
	existing, err := s.movementRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		return nil, nil, movement.ErrDuplicateMovement{IdempotencyKey: key}
	}

	w, err := s.walletRepo.GetByID(ctx, existing.WalletID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Returning movement committed by concurrent request",
		"idempotency_key", key,
		"movement_id", existing.ID.String(),
	)
	return existing, w, nil
}

// findByIdempotencyKey returns a previously recorded movement for the key, if any
func (s *WalletServiceImpl) findByIdempotencyKey(ctx context.Context, key string) (*movement.Movement, error) {
	if key == "" {
		return nil, nil
	}

	existing, err := s.movementRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Error("Failed to check for existing movement with idempotency key",
			"idempotency_key", key,
			"error", err,
		)
		return nil, err
	}
	if existing != nil {
		s.logger.Info("Found existing movement with idempotency key",
			"idempotency_key", key,
			"movement_id", existing.ID.String(),
		)
	}
	return existing, nil
}

// enqueueAudit writes the movement to the outbox inside the same transaction
func (s *WalletServiceImpl) enqueueAudit(ctx context.Context, tx pgx.Tx, m *movement.Movement) error {
	msg, err := outbox.NewMessage(m)
	if err != nil {
		return err
	}
	return s.outboxRepo.WithTx(tx).Create(ctx, msg)
}
