package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/platform/persistence"
)

// MovementRepository implements the movement.Repository interface for PostgreSQL
type MovementRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewMovementRepository creates a new PostgreSQL movement repository
func NewMovementRepository(logger *slog.Logger, db *persistence.PostgresDB) movement.Repository {
	return &MovementRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so a movement insert can
// share a commit with the wallet balance update.
func (r *MovementRepository) WithTx(tx pgx.Tx) movement.Repository {
	return &MovementRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// idempotency_key is stored as NULL when the client sent none, so the partial
// unique index only covers keyed movements. COALESCE folds it back to "" on
// the way out; the struct field is a plain string.
const movementColumns = `id, wallet_id, kind, amount, balance_before, balance_after, description,
		reference_id, reference_type, external_payment_id, COALESCE(idempotency_key, '') AS idempotency_key, correlation_id,
		status, failure_reason, created_at, settled_at`

func (r *MovementRepository) scanMovement(row pgx.Row) (*movement.Movement, error) {
	var m movement.Movement
	err := row.Scan(
		&m.ID,
		&m.WalletID,
		&m.Kind,
		&m.Amount,
		&m.BalanceBefore,
		&m.BalanceAfter,
		&m.Description,
		&m.ReferenceID,
		&m.ReferenceType,
		&m.ExternalPaymentID,
		&m.IdempotencyKey,
		&m.CorrelationID,
		&m.Status,
		&m.FailureReason,
		&m.CreatedAt,
		&m.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create appends a movement to the wallet's history. The idempotency key
// unique index rejects replays of the same client request.
func (r *MovementRepository) Create(ctx context.Context, m *movement.Movement) error {
	query := `
		INSERT INTO movements (id, wallet_id, kind, amount, balance_before, balance_after, description,
			reference_id, reference_type, external_payment_id, idempotency_key, correlation_id,
			status, failure_reason, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14, $15, $16)
	`

	_, err := r.querier.Exec(ctx, query,
		m.ID,
		m.WalletID,
		m.Kind,
		m.Amount,
		m.BalanceBefore,
		m.BalanceAfter,
		m.Description,
		m.ReferenceID,
		m.ReferenceType,
		m.ExternalPaymentID,
		m.IdempotencyKey,
		m.CorrelationID,
		m.Status,
		m.FailureReason,
		m.CreatedAt,
		m.SettledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A concurrent request with the same idempotency key committed first
			return movement.ErrDuplicateMovement{IdempotencyKey: m.IdempotencyKey}
		}
		r.logger.Error("Failed to create movement", "movement_id", m.ID.String(), "wallet_id", m.WalletID.String(), "error", err)
		return fmt.Errorf("failed to create movement: %w", err)
	}

	return nil
}

// GetByID retrieves a movement by its ID
func (r *MovementRepository) GetByID(ctx context.Context, id uuid.UUID) (*movement.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE id = $1
	`

	m, err := r.scanMovement(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, movement.ErrMovementNotFound{MovementID: id}
		}
		r.logger.Error("Failed to get movement", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}

	return m, nil
}

// GetByIdempotencyKey retrieves a movement by its idempotency key.
// Returns nil, nil when no movement carries the key.
func (r *MovementRepository) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*movement.Movement, error) {
	if idempotencyKey == "" {
		return nil, errors.New("idempotency key cannot be empty")
	}

	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE idempotency_key = $1
	`

	m, err := r.scanMovement(r.querier.QueryRow(ctx, query, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No movement found with this idempotency key
		}
		r.logger.Error("Failed to get movement by idempotency key", "idempotency_key", idempotencyKey, "error", err)
		return nil, fmt.Errorf("failed to get movement by idempotency key: %w", err)
	}

	return m, nil
}

// ListByWalletID retrieves movements for a wallet, newest first
func (r *MovementRepository) ListByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*movement.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list movements", "wallet_id", walletID.String(), "error", err)
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []*movement.Movement
	for rows.Next() {
		m, err := r.scanMovement(rows)
		if err != nil {
			r.logger.Error("Failed to scan movement", "error", err)
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over movements", "error", err)
		return nil, fmt.Errorf("error iterating over movements: %w", err)
	}

	return movements, nil
}

// CountByWalletID counts the total number of movements for a wallet
func (r *MovementRepository) CountByWalletID(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM movements
		WHERE wallet_id = $1
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, walletID).Scan(&count); err != nil {
		r.logger.Error("Failed to count movements", "wallet_id", walletID.String(), "error", err)
		return 0, fmt.Errorf("failed to count movements: %w", err)
	}

	return count, nil
}

// MarkSettled transitions a PENDING movement to APPROVED and records the
// balance snapshots. The WHERE status guard makes replays affect zero rows.
func (r *MovementRepository) MarkSettled(ctx context.Context, id uuid.UUID, balanceBefore, balanceAfter int64, settledAt time.Time) error {
	query := `
		UPDATE movements
		SET status = $1, balance_before = $2, balance_after = $3, settled_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := r.querier.Exec(ctx, query,
		shared.MovementStatusApproved,
		balanceBefore,
		balanceAfter,
		settledAt,
		id,
		shared.MovementStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to settle movement", "id", id.String(), "error", err)
		return fmt.Errorf("failed to settle movement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.notPendingError(ctx, id)
	}

	return nil
}

// MarkRejected transitions a PENDING movement to REJECTED with a reason
func (r *MovementRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE movements
		SET status = $1, failure_reason = $2, settled_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query,
		shared.MovementStatusRejected,
		reason,
		time.Now(),
		id,
		shared.MovementStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to reject movement", "id", id.String(), "error", err)
		return fmt.Errorf("failed to reject movement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.notPendingError(ctx, id)
	}

	return nil
}

// MarkCancelled transitions a movement to CANCELLED unless its balance delta
// was already applied (APPROVED movements must be reversed by a refund).
func (r *MovementRepository) MarkCancelled(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE movements
		SET status = $1, failure_reason = $2
		WHERE id = $3 AND status NOT IN ($4, $5)
	`

	result, err := r.querier.Exec(ctx, query,
		shared.MovementStatusCancelled,
		reason,
		id,
		shared.MovementStatusApproved,
		shared.MovementStatusCancelled,
	)
	if err != nil {
		r.logger.Error("Failed to cancel movement", "id", id.String(), "error", err)
		return fmt.Errorf("failed to cancel movement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.notPendingError(ctx, id)
	}

	return nil
}

// notPendingError distinguishes a missing movement from one in the wrong state
func (r *MovementRepository) notPendingError(ctx context.Context, id uuid.UUID) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return movement.ErrNotPending{MovementID: id, Status: existing.Status}
}
