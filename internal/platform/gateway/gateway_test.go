package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldserv/wallet-ledger/internal/config"
	"github.com/fieldserv/wallet-ledger/internal/domain/shared"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*HTTPGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	gw := NewHTTPGateway(logger, &config.GatewayConfig{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		Timeout:     5 * time.Second,
		CallbackURL: "http://localhost:8080/webhooks/gateway",
	})
	return gw, server
}

func TestHTTPGateway_CreateCheckoutSession(t *testing.T) {
	ctx := context.Background()

	checkoutReq := &CheckoutRequest{
		WalletID:   uuid.New(),
		MovementID: uuid.New(),
		Amount:     15000,
		Method:     shared.PaymentMethodPix,
	}

	t.Run("success", func(t *testing.T) {
		expiresAt := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
		gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var received CheckoutRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			assert.Equal(t, checkoutReq.MovementID, received.MovementID)
			assert.Equal(t, int64(15000), received.Amount)
			assert.Equal(t, shared.PaymentMethodPix, received.Method)
			assert.Equal(t, "http://localhost:8080/webhooks/gateway", received.CallbackURL)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(CheckoutSession{
				ID:          "cs_test_123",
				RedirectURL: "https://checkout.gateway.local/cs_test_123",
				ExpiresAt:   expiresAt,
			})
		})

		session, err := gw.CreateCheckoutSession(ctx, checkoutReq)
		require.NoError(t, err)
		assert.Equal(t, "cs_test_123", session.ID)
		assert.Equal(t, "https://checkout.gateway.local/cs_test_123", session.RedirectURL)
		assert.Equal(t, expiresAt, session.ExpiresAt.UTC())
	})

	t.Run("gateway rejects request", func(t *testing.T) {
		gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"unsupported method"}`))
		})

		session, err := gw.CreateCheckoutSession(ctx, checkoutReq)
		require.Error(t, err)
		assert.Nil(t, session)

		var gwErr ErrGatewayUnavailable
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, http.StatusUnprocessableEntity, gwErr.Status)
		assert.Contains(t, gwErr.Body, "unsupported method")
		assert.ErrorIs(t, err, ErrGatewayUnavailable{})
	})

	t.Run("gateway down", func(t *testing.T) {
		gw, server := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
		server.Close()

		session, err := gw.CreateCheckoutSession(ctx, checkoutReq)
		require.Error(t, err)
		assert.Nil(t, session)
		assert.Contains(t, err.Error(), "failed to call payment gateway")
	})

	t.Run("missing session id", func(t *testing.T) {
		gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"redirect_url":"https://checkout.gateway.local/x"}`))
		})

		session, err := gw.CreateCheckoutSession(ctx, checkoutReq)
		require.Error(t, err)
		assert.Nil(t, session)
		assert.Contains(t, err.Error(), "without an id")
	})

	t.Run("malformed response body", func(t *testing.T) {
		gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`not-json`))
		})

		session, err := gw.CreateCheckoutSession(ctx, checkoutReq)
		require.Error(t, err)
		assert.Nil(t, session)
		assert.Contains(t, err.Error(), "failed to decode gateway response")
	})
}

func TestErrGatewayUnavailable_Is(t *testing.T) {
	err := ErrGatewayUnavailable{Status: 502, Body: "bad gateway"}

	assert.ErrorIs(t, err, ErrGatewayUnavailable{})
	assert.ErrorIs(t, err, ErrGatewayUnavailable{Status: 502})
	assert.NotErrorIs(t, err, ErrGatewayUnavailable{Status: 500})
}
