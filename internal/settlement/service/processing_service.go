package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
	"github.com/fieldserv/wallet-ledger/internal/platform/persistence"
)

type ProcessingServiceImpl struct {
	pgDB            *persistence.PostgresDB
	validator       SettlementValidator
	walletApplier   WalletApplier
	auditManager    AuditManager
	failureRecorder FailureRecorder
	logger          *slog.Logger
}

func NewProcessingService(
	pgDB *persistence.PostgresDB,
	validator SettlementValidator,
	walletApplier WalletApplier,
	auditManager AuditManager,
	failureRecorder FailureRecorder,
	logger *slog.Logger,
) ProcessingService {
	return &ProcessingServiceImpl{
		pgDB:            pgDB,
		validator:       validator,
		walletApplier:   walletApplier,
		auditManager:    auditManager,
		failureRecorder: failureRecorder,
		logger:          logger,
	}
}

// ProcessSettlement handles the core logic for applying a gateway settlement
// verdict to a pending deposit. Business failures are recorded and return nil
// so the Kafka message is acknowledged; infrastructure errors propagate so
// the consumer retries.
func (s *ProcessingServiceImpl) ProcessSettlement(ctx context.Context, event *shared.SettlementEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Processing settlement", "movement_id", event.MovementID.String(), "wallet_id", event.WalletID.String(), "outcome", string(event.Outcome))

	// 1. Validate the settlement event
	if err := s.validator.Validate(ctx, event); err != nil {
		logger.Error("Settlement validation failed", "movement_id", event.MovementID.String(), "error", err)

		var failureReason string
		if errors.Is(err, shared.ErrInvalidGatewayOutcome) {
			failureReason = string(shared.FailureReasonUnknownError)
		} else {
			failureReason = string(shared.FailureReasonInvalidAmount)
		}

		if recordErr := s.failureRecorder.RecordFailure(ctx, event, failureReason); recordErr != nil {
			logger.Error("Failed to record settlement failure", "movement_id", event.MovementID.String(), "error", recordErr)
		}

		return nil // Return nil to Kafka consumer to acknowledge the message
	}

	// 2. Skip settlements that already reached a terminal state
	skip, err := s.validator.CheckAlreadySettled(ctx, event)
	if err != nil {
		if errors.Is(err, movement.ErrMovementNotFound{}) {
			logger.Warn("Settlement references unknown movement", "movement_id", event.MovementID.String())
			if recordErr := s.failureRecorder.RecordFailure(ctx, event, string(shared.FailureReasonMovementNotFound)); recordErr != nil {
				logger.Error("Failed to record missing movement failure", "movement_id", event.MovementID.String(), "error", recordErr)
			}
			return nil // Return nil to Kafka consumer
		}
		return err // Let Kafka retry
	}
	if skip {
		return nil // Already settled, return success
	}

	// 3. A rejected checkout never touches the balance
	if event.Outcome == shared.GatewayOutcomeRejected {
		if err := s.failureRecorder.RecordFailure(ctx, event, string(shared.FailureReasonGatewayRejected)); err != nil {
			logger.Error("Failed to record gateway rejection", "movement_id", event.MovementID.String(), "error", err)
			return err // Let Kafka retry, the rejection must land in the ledger
		}
		logger.Info("Deposit rejected by gateway", "movement_id", event.MovementID.String())
		return nil
	}

	// 4. Begin database transaction
	var tx pgx.Tx
	tx, err = s.pgDB.Pool().Begin(ctx)
	if err != nil {
		logger.Error("Failed to begin database transaction", "movement_id", event.MovementID.String(), "error", err)
		return fmt.Errorf("failed to begin DB transaction for %s: %w", event.MovementID.String(), err)
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic recovered, rolling back transaction", "panic", p, "movement_id", event.MovementID.String())
			_ = tx.Rollback(ctx)
			panic(p) // Re-panic
		} else if err != nil {
			logger.Error("Error occurred, rolling back transaction", "error", err, "movement_id", event.MovementID.String())
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Error("Failed to rollback transaction after error", "rollback_error", rbErr, "original_error", err, "movement_id", event.MovementID.String())
			}
		}
	}()

	// 5. Lock the wallet, credit the amount, settle the movement
	_, settledMovement, err := s.walletApplier.ApplyDeposit(ctx, tx, event)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound{}) {
			if recordErr := s.failureRecorder.RecordFailure(ctx, event, string(shared.FailureReasonWalletNotFound)); recordErr != nil {
				logger.Error("Failed to record wallet not found failure", "movement_id", event.MovementID.String(), "error", recordErr)
			}
			return nil // Return nil to Kafka consumer
		} else if errors.Is(err, movement.ErrNotPending{}) {
			// A concurrent consumer won the race; the conditional update
			// touched zero rows
			logger.Info("Movement already settled by another consumer", "movement_id", event.MovementID.String())
			return nil
		} else if errors.Is(err, wallet.ErrInvalidAmount) {
			if recordErr := s.failureRecorder.RecordFailure(ctx, event, string(shared.FailureReasonInvalidAmount)); recordErr != nil {
				logger.Error("Failed to record invalid amount failure", "movement_id", event.MovementID.String(), "error", recordErr)
			}
			return nil // Return nil to Kafka consumer
		}

		// For other errors, let them propagate for retry
		return err
	}

	// 6. Create audit outbox entry in the same transaction
	if err = s.auditManager.CreateAuditEntry(ctx, tx, settledMovement); err != nil {
		return err // Let the defer handle rollback
	}

	// 7. Commit transaction
	if err = tx.Commit(ctx); err != nil {
		logger.Error("Failed to commit database transaction",
			"movement_id", event.MovementID.String(),
			"wallet_id", event.WalletID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to commit DB transaction for movement %s: %w", event.MovementID.String(), err)
	}

	logger.Info("Settlement applied", "movement_id", event.MovementID.String(), "wallet_id", event.WalletID.String())
	return nil
}
