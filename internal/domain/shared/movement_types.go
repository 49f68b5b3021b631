package shared

import "errors"

var (
	ErrInvalidMovementKind   = errors.New("invalid movement kind")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrInvalidGatewayOutcome = errors.New("invalid gateway outcome")
)

// MovementKind defines the business reason for a balance change
type MovementKind string

const (
	MovementKindDeposit             MovementKind = "DEPOSIT"
	MovementKindWithdrawal          MovementKind = "WITHDRAWAL"
	MovementKindServicePayment      MovementKind = "SERVICE_PAYMENT"
	MovementKindPartsPayment        MovementKind = "PARTS_PAYMENT"
	MovementKindSubscriptionPayment MovementKind = "SUBSCRIPTION_PAYMENT"
	MovementKindRefund              MovementKind = "REFUND"
	MovementKindBonus               MovementKind = "BONUS"
)

// IsDebitKind reports whether the kind spends wallet funds
func (k MovementKind) IsDebitKind() bool {
	switch k {
	case MovementKindServicePayment, MovementKindPartsPayment, MovementKindSubscriptionPayment, MovementKindWithdrawal:
		return true
	}
	return false
}

// IsCreditKind reports whether the kind adds wallet funds
func (k MovementKind) IsCreditKind() bool {
	switch k {
	case MovementKindDeposit, MovementKindRefund, MovementKindBonus:
		return true
	}
	return false
}

// MovementStatus defines movement settlement states.
// Only APPROVED movements participate in balance arithmetic.
type MovementStatus string

const (
	MovementStatusPending   MovementStatus = "PENDING"
	MovementStatusApproved  MovementStatus = "APPROVED"
	MovementStatusRejected  MovementStatus = "REJECTED"
	MovementStatusCancelled MovementStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from the status
func (s MovementStatus) IsTerminal() bool {
	return s == MovementStatusApproved || s == MovementStatusRejected || s == MovementStatusCancelled
}

// PaymentMethod defines the checkout methods accepted by the payment gateway
type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentMethodBoleto     PaymentMethod = "BOLETO"
)

// ValidPaymentMethod reports whether m is one of the accepted checkout methods
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodPix, PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodBoleto:
		return true
	}
	return false
}

// GatewayOutcome is the settlement verdict reported by the payment gateway
type GatewayOutcome string

const (
	GatewayOutcomeApproved GatewayOutcome = "APPROVED"
	GatewayOutcomeRejected GatewayOutcome = "REJECTED"
)

// FailureReason defines settlement failure categories
type FailureReason string

const (
	FailureReasonMovementNotFound  FailureReason = "MOVEMENT_NOT_FOUND"
	FailureReasonWalletNotFound    FailureReason = "WALLET_NOT_FOUND"
	FailureReasonNotPending        FailureReason = "MOVEMENT_NOT_PENDING"
	FailureReasonInvalidAmount     FailureReason = "INVALID_AMOUNT"
	FailureReasonSettlementFailed  FailureReason = "SETTLEMENT_FAILED"
	FailureReasonCommitFailed      FailureReason = "TRANSACTION_COMMIT_FAILED"
	FailureReasonUnknownError      FailureReason = "UNKNOWN_ERROR"
	FailureReasonGatewayRejected   FailureReason = "GATEWAY_REJECTED"
	FailureReasonPayloadUnreadable FailureReason = "PAYLOAD_UNREADABLE"
)

// OutboxStatus defines audit replication states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
