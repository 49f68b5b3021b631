package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldserv/wallet-ledger/internal/api/handler"
	"github.com/fieldserv/wallet-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	walletHandler *handler.WalletHandler,
	depositHandler *handler.DepositHandler,
	webhookHandler *handler.WebhookHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Wallet operations, scoped to the authenticated owner
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.OwnerAuth())
		{
			wallet.GET("", walletHandler.Get)
			wallet.GET("/movements", walletHandler.ListMovements)
			wallet.POST("/deposits", depositHandler.Create)
			wallet.POST("/deposits/:id/cancel", depositHandler.Cancel)
			wallet.POST("/payments", walletHandler.Pay)
			wallet.POST("/credits", walletHandler.Credit)
		}
	}

	// Gateway settlement callbacks carry no owner identity
	r.POST("/webhooks/gateway", webhookHandler.GatewaySettlement)

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
