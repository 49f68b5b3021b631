package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/outbox"
	"github.com/fieldserv/wallet-ledger/internal/settlement/service"
)

type AuditManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewAuditManager(outboxRepo outbox.Repository, logger *slog.Logger) service.AuditManager {
	return &AuditManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateAuditEntry creates an outbox entry for a settled movement so the
// poller replicates it into the Mongo audit trail
func (m *AuditManagerImpl) CreateAuditEntry(ctx context.Context, tx pgx.Tx, settledMovement *movement.Movement) error {
	logger := m.logger
	if settledMovement.CorrelationID != "" {
		logger = m.logger.With("correlation_id", settledMovement.CorrelationID)
	}

	outboxRepoTx := m.outboxRepo.WithTx(tx)

	outboxMessage, err := outbox.NewMessage(settledMovement)
	if err != nil {
		logger.Error("Failed to create new outbox message (marshal payload)",
			"movement_id", settledMovement.ID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message payload for movement %s: %w", settledMovement.ID.String(), err)
	}

	if err = outboxRepoTx.Create(ctx, outboxMessage); err != nil {
		logger.Error("Failed to create outbox message",
			"movement_id", settledMovement.ID.String(),
			"wallet_id", settledMovement.WalletID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for movement %s: %w", settledMovement.ID.String(), err)
	}
	logger.Info("Outbox message created successfully",
		"movement_id", settledMovement.ID.String(),
		"outbox_id", outboxMessage.ID,
	)

	return nil
}
