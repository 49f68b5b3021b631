package audit_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fieldserv/wallet-ledger/internal/domain/audit"
	"github.com/fieldserv/wallet-ledger/internal/domain/outbox"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

// AuditPublisher publishes outbox messages to the audit trail
type AuditPublisher interface {
	PublishToAudit(ctx context.Context, message *outbox.Message) error
}

// AuditPublisherImpl implements AuditPublisher
type AuditPublisherImpl struct {
	outboxRepo outbox.Repository
	auditRepo  audit.Repository
	logger     *slog.Logger
}

// NewAuditPublisher creates a new publisher
func NewAuditPublisher(
	outboxRepo outbox.Repository,
	auditRepo audit.Repository,
	logger *slog.Logger,
) AuditPublisher {
	return &AuditPublisherImpl{
		outboxRepo: outboxRepo,
		auditRepo:  auditRepo,
		logger:     logger,
	}
}

// PublishToAudit replicates an outbox message into the Mongo audit trail
func (p *AuditPublisherImpl) PublishToAudit(ctx context.Context, message *outbox.Message) error {
	m, err := message.GetMovement()
	if err != nil {
		p.logger.Error("Failed to unmarshal movement from outbox payload",
			"outbox_id", message.ID, "movement_id", message.MovementID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	// Add correlation ID to logger
	logger := p.logger
	if m.CorrelationID != "" {
		logger = p.logger.With("correlation_id", m.CorrelationID)
	}

	logger.Info("Attempting to publish outbox message to audit trail", "outbox_id", message.ID, "movement_id", message.MovementID)

	record := audit.NewRecord(m)
	if err := p.auditRepo.Create(ctx, record); err != nil {
		if errors.Is(err, audit.ErrDuplicateRecord{}) {
			// A previous attempt wrote the record but died before marking
			// the outbox row; finishing the bookkeeping is all that's left
			logger.Info("Audit record already exists", "movement_id", message.MovementID)
		} else {
			logger.Error("Failed to create audit record in MongoDB", "movement_id", message.MovementID, "error", err)
			return fmt.Errorf("failed to create audit record for movement %s: %w", message.MovementID, err)
		}
	} else {
		logger.Info("Successfully created audit record in MongoDB", "movement_id", message.MovementID)
	}

	// Mark outbox message as processed
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "movement_id", message.MovementID, "error", err,
		)
		return fmt.Errorf("audit write for %s OK, but failed to mark outbox %d as PROCESSED: %w", message.MovementID, message.ID, err)
	}

	logger.Info("Outbox message successfully processed and marked as PROCESSED", "outbox_id", message.ID, "movement_id", message.MovementID)
	return nil
}
