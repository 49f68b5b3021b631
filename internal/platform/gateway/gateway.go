// Package gateway provides the HTTP adapter for the external payment
// gateway. The gateway hosts the actual checkout: we create a session,
// hand the redirect URL to the client, and learn the outcome later via
// webhook. No money moves on the wallet until that webhook settles.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserv/wallet-ledger/internal/config"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

// CheckoutSession is the gateway's handle for a payment in progress.
// ID becomes the movement's external payment id and is how the webhook
// correlates back to the pending deposit.
type CheckoutSession struct {
	ID          string    `json:"id"`
	RedirectURL string    `json:"redirect_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CheckoutRequest carries everything the gateway needs to open a session
type CheckoutRequest struct {
	WalletID    uuid.UUID            `json:"wallet_id"`
	MovementID  uuid.UUID            `json:"movement_id"`
	Amount      int64                `json:"amount"` // Minor units
	Method      shared.PaymentMethod `json:"method"`
	CallbackURL string               `json:"callback_url"`
	Description string               `json:"description,omitempty"`
}

// PaymentGateway creates checkout sessions with the external provider
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
}

// ErrGatewayUnavailable indicates the gateway rejected or failed the call.
// Carries the HTTP status and response body for diagnostics.
type ErrGatewayUnavailable struct {
	Status int
	Body   string
}

func (e ErrGatewayUnavailable) Error() string {
	return fmt.Sprintf("payment gateway error: status=%d body=%s", e.Status, e.Body)
}

// Is implements the errors.Is interface for ErrGatewayUnavailable
func (e ErrGatewayUnavailable) Is(target error) bool {
	t, ok := target.(ErrGatewayUnavailable)
	if !ok {
		return false
	}
	// A zero-value target matches any gateway error
	if t.Status == 0 {
		return true
	}
	return e.Status == t.Status
}

// HTTPGateway implements PaymentGateway over the gateway's REST API
type HTTPGateway struct {
	logger      *slog.Logger
	client      *http.Client
	baseURL     string
	apiKey      string
	callbackURL string
}

// NewHTTPGateway creates a gateway client from configuration
func NewHTTPGateway(logger *slog.Logger, cfg *config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		logger:      logger,
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		callbackURL: cfg.CallbackURL,
	}
}

// CreateCheckoutSession opens a checkout with the gateway and returns the
// session the client should be redirected to. Any non-2xx response maps to
// ErrGatewayUnavailable.
func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = g.callbackURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Error("Gateway checkout call failed",
			"movement_id", req.MovementID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Error("Gateway rejected checkout",
			"movement_id", req.MovementID.String(),
			"status", resp.StatusCode,
		)
		return nil, ErrGatewayUnavailable{Status: resp.StatusCode, Body: string(respBody)}
	}

	var session CheckoutSession
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("gateway returned checkout session without an id")
	}

	g.logger.Debug("Created gateway checkout session",
		"movement_id", req.MovementID.String(),
		"session_id", session.ID,
	)
	return &session, nil
}
