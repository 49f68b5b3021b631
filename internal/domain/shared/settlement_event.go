package shared

import (
	"time"

	"github.com/google/uuid"
)

// SettlementEvent is the Kafka message that carries a gateway settlement
// verdict from the webhook endpoint to the settlement worker.
type SettlementEvent struct {
	MovementID        uuid.UUID      `json:"movement_id"`
	WalletID          uuid.UUID      `json:"wallet_id"`
	ExternalPaymentID string         `json:"external_payment_id"`
	Outcome           GatewayOutcome `json:"outcome"`
	Amount            int64          `json:"amount"` // Minor units, as reported by the gateway
	CorrelationID     string         `json:"correlation_id"`
	Timestamp         time.Time      `json:"timestamp"`
}
