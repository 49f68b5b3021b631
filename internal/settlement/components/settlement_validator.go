package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/settlement/service"
)

type SettlementValidatorImpl struct {
	movementRepo movement.Repository
	logger       *slog.Logger
}

func NewSettlementValidator(movementRepo movement.Repository, logger *slog.Logger) service.SettlementValidator {
	return &SettlementValidatorImpl{
		movementRepo: movementRepo,
		logger:       logger,
	}
}

// Validate checks settlement event validity
func (v *SettlementValidatorImpl) Validate(ctx context.Context, event *shared.SettlementEvent) error {
	logger := v.logger
	if event.CorrelationID != "" {
		logger = v.logger.With("correlation_id", event.CorrelationID)
	}

	if event.Outcome != shared.GatewayOutcomeApproved && event.Outcome != shared.GatewayOutcomeRejected {
		logger.Error("Unknown gateway outcome", "movement_id", event.MovementID.String(), "outcome", string(event.Outcome))
		return shared.ErrInvalidGatewayOutcome
	}

	if event.Amount <= 0 {
		logger.Error("Invalid settlement amount", "movement_id", event.MovementID.String(), "amount", event.Amount)
		return fmt.Errorf("amount must be positive: %d", event.Amount)
	}

	return nil
}

// CheckAlreadySettled reports whether the movement already reached a terminal
// state, which makes the settlement a replay. Propagates ErrMovementNotFound
// so the caller can record the failure.
func (v *SettlementValidatorImpl) CheckAlreadySettled(ctx context.Context, event *shared.SettlementEvent) (bool, error) {
	logger := v.logger
	if event.CorrelationID != "" {
		logger = v.logger.With("correlation_id", event.CorrelationID)
	}

	m, err := v.movementRepo.GetByID(ctx, event.MovementID)
	if err != nil {
		return false, err
	}

	if m.Status.IsTerminal() {
		logger.Info("Settlement already processed (idempotency)", "movement_id", event.MovementID.String(), "status", string(m.Status))
		return true, nil // Skip processing
	}

	return false, nil // Continue processing
}
