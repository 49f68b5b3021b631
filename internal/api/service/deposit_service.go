package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/domain/movement"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
	"github.com/fieldserv/wallet-ledger/internal/platform/gateway"
	"github.com/fieldserv/wallet-ledger/internal/platform/messaging/producers"
)

// DepositServiceImpl implements the DepositService interface
type DepositServiceImpl struct {
	walletService WalletService
	movementRepo  movement.Repository
	gateway       gateway.PaymentGateway
	producer      producers.MessagePublisher
	logger        *slog.Logger
}

// NewDepositService creates a new deposit service
func NewDepositService(
	logger *slog.Logger,
	walletService WalletService,
	movementRepo movement.Repository,
	paymentGateway gateway.PaymentGateway,
	producer producers.MessagePublisher,
) DepositService {
	return &DepositServiceImpl{
		walletService: walletService,
		movementRepo:  movementRepo,
		gateway:       paymentGateway,
		producer:      producer,
		logger:        logger,
	}
}

// RequestDeposit opens a gateway checkout session and records a PENDING
// deposit movement referencing it. The wallet balance stays untouched; the
// settlement worker credits it once the gateway confirms via webhook.
func (s *DepositServiceImpl) RequestDeposit(ctx context.Context, params *DepositParams) (*DepositCheckout, error) {
	if !shared.ValidPaymentMethod(params.Method) {
		return nil, shared.ErrInvalidPaymentMethod
	}

	if params.IdempotencyKey != "" {
		existing, err := s.movementRepo.GetByIdempotencyKey(ctx, params.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("Found existing deposit with idempotency key",
				"idempotency_key", params.IdempotencyKey,
				"movement_id", existing.ID.String(),
				"status", string(existing.Status),
			)
			return &DepositCheckout{Movement: existing, SessionID: existing.ExternalPaymentID}, nil
		}
	}

	w, err := s.walletService.GetOrCreateWallet(ctx, params.OwnerID)
	if err != nil {
		return nil, err
	}

	m := movement.NewPendingDeposit(w.ID, params.Amount, "", params.Description)
	m.IdempotencyKey = params.IdempotencyKey
	m.CorrelationID = params.CorrelationID

	session, err := s.gateway.CreateCheckoutSession(ctx, &gateway.CheckoutRequest{
		WalletID:    w.ID,
		MovementID:  m.ID,
		Amount:      params.Amount,
		Method:      params.Method,
		Description: params.Description,
	})
	if err != nil {
		s.logger.Error("Gateway checkout failed, no movement recorded",
			"wallet_id", w.ID.String(),
			"amount", params.Amount,
			"error", err,
		)
		return nil, err
	}

	m.ExternalPaymentID = session.ID
	if err := s.movementRepo.Create(ctx, m); err != nil {
		var dup movement.ErrDuplicateMovement
		if errors.As(err, &dup) {
			// A concurrent request with the same key opened its own checkout
			// first; return that one and let this session expire unused
			existing, gerr := s.movementRepo.GetByIdempotencyKey(ctx, dup.IdempotencyKey)
			if gerr != nil || existing == nil {
				return nil, err
			}
			return &DepositCheckout{Movement: existing, SessionID: existing.ExternalPaymentID}, nil
		}
		return nil, err
	}

	s.logger.Info("Deposit requested",
		"wallet_id", w.ID.String(),
		"movement_id", m.ID.String(),
		"session_id", session.ID,
		"method", string(params.Method),
		"amount", params.Amount,
	)

	return &DepositCheckout{
		Movement:    m,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	}, nil
}

// AcknowledgeSettlement validates the webhook notification against the
// pending movement and publishes it to the settlement topic. The actual
// balance mutation happens in the settlement worker; publishing here keeps
// the webhook endpoint fast and retry-safe.
func (s *DepositServiceImpl) AcknowledgeSettlement(ctx context.Context, event *shared.SettlementEvent) error {
	m, err := s.movementRepo.GetByID(ctx, event.MovementID)
	if err != nil {
		return err
	}

	if m.Status.IsTerminal() {
		// Gateway retried a webhook for an already settled deposit
		s.logger.Info("Ignoring settlement for already settled movement",
			"movement_id", m.ID.String(),
			"status", string(m.Status),
		)
		return nil
	}

	if m.ExternalPaymentID != event.ExternalPaymentID {
		s.logger.Warn("Settlement notification does not match movement's payment session",
			"movement_id", m.ID.String(),
			"expected_session", m.ExternalPaymentID,
			"received_session", event.ExternalPaymentID,
		)
		return errors.New("settlement notification does not match payment session")
	}

	event.WalletID = m.WalletID
	event.Amount = m.Amount
	if event.CorrelationID == "" {
		event.CorrelationID = m.CorrelationID
	}

	// Keyed by wallet so settlements for one wallet stay ordered
	if err := s.producer.Publish(ctx, m.WalletID.String(), event); err != nil {
		s.logger.Error("Failed to publish settlement event",
			"movement_id", m.ID.String(),
			"error", err,
		)
		return err
	}

	s.logger.Info("Settlement event published",
		"movement_id", m.ID.String(),
		"wallet_id", m.WalletID.String(),
		"outcome", string(event.Outcome),
	)
	return nil
}

// CancelDeposit abandons a pending deposit checkout. The balance was never
// touched, so this is a status transition only; the conditional update in the
// repository rejects cancellation of an already applied movement.
func (s *DepositServiceImpl) CancelDeposit(ctx context.Context, ownerID, movementID uuid.UUID) (*movement.Movement, error) {
	m, err := s.movementRepo.GetByID(ctx, movementID)
	if err != nil {
		return nil, err
	}

	w, err := s.walletService.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// A movement belonging to another owner's wallet is not found, not forbidden
	if m.WalletID != w.ID {
		return nil, movement.ErrMovementNotFound{MovementID: movementID}
	}

	if err := s.movementRepo.MarkCancelled(ctx, movementID, "cancelled by owner"); err != nil {
		return nil, err
	}

	s.logger.Info("Deposit cancelled",
		"movement_id", movementID.String(),
		"wallet_id", w.ID.String(),
	)

	return s.movementRepo.GetByID(ctx, movementID)
}
