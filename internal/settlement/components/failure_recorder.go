package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/outbox"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/settlement/service"
)

type FailureRecorderImpl struct {
	movementRepo movement.Repository
	outboxRepo   outbox.Repository
	logger       *slog.Logger
}

func NewFailureRecorder(movementRepo movement.Repository, outboxRepo outbox.Repository, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		movementRepo: movementRepo,
		outboxRepo:   outboxRepo,
		logger:       logger,
	}
}

// RecordFailure marks the pending movement REJECTED with the failure reason
// and queues the rejection for the audit trail. The wallet balance is never
// touched on a failure path.
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, event *shared.SettlementEvent, failureReason string) error {
	logger := r.logger
	if event.CorrelationID != "" {
		logger = r.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Recording failed settlement", "movement_id", event.MovementID.String(), "reason", failureReason)

	err := r.movementRepo.MarkRejected(ctx, event.MovementID, failureReason)
	if err != nil {
		if errors.Is(err, movement.ErrMovementNotFound{}) {
			logger.Warn("No movement to record failure against", "movement_id", event.MovementID.String())
			return nil
		}
		if errors.Is(err, movement.ErrNotPending{}) {
			logger.Info("Movement already in terminal state, failure not recorded", "movement_id", event.MovementID.String())
			return nil
		}
		logger.Error("Failed to mark movement as REJECTED", "movement_id", event.MovementID.String(), "error", err)
		return err
	}

	// Queue the rejected movement for the audit trail. Losing this is
	// tolerable; the rejection itself is already durable in Postgres.
	rejected, err := r.movementRepo.GetByID(ctx, event.MovementID)
	if err != nil {
		logger.Error("Failed to read rejected movement for audit", "movement_id", event.MovementID.String(), "error", err)
		return nil
	}

	outboxMessage, err := outbox.NewMessage(rejected)
	if err != nil {
		logger.Error("Failed to build audit outbox message for rejection", "movement_id", event.MovementID.String(), "error", err)
		return nil
	}
	if err := r.outboxRepo.Create(ctx, outboxMessage); err != nil {
		logger.Error("Failed to queue rejection for audit trail", "movement_id", event.MovementID.String(), "error", err)
		return nil
	}

	logger.Info("Successfully recorded rejected settlement", "movement_id", event.MovementID.String())
	return nil
}
