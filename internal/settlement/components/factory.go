package components

import (
	"log/slog"

	"github.com/fieldserv/wallet-ledger/internal/config"
	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/outbox"
	"github.com/fieldserv/wallet-ledger/internal/domain/wallet"
	"github.com/fieldserv/wallet-ledger/internal/platform/persistence"
	"github.com/fieldserv/wallet-ledger/internal/settlement/service"
)

// CreateProcessingService creates a new ProcessingService with all its dependencies.
func CreateProcessingService(
	pgDB *persistence.PostgresDB,
	walletRepo wallet.Repository,
	movementRepo movement.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
	cfg *config.Config,
) service.ProcessingService {
	validator := NewSettlementValidator(movementRepo, logger)
	walletApplier := NewWalletApplier(walletRepo, movementRepo, logger)
	auditManager := NewAuditManager(outboxRepo, logger)
	failureRecorder := NewFailureRecorder(movementRepo, outboxRepo, logger)

	baseService := service.NewProcessingService(
		pgDB,
		validator,
		walletApplier,
		auditManager,
		failureRecorder,
		logger,
	)

	workerPoolService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)

	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool processing service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
