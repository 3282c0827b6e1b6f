package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vcard-ledger/internal/api_gateway/handler"
	"github.com/vcard-ledger/internal/api_gateway/middleware"
	"github.com/vcard-ledger/internal/config"
	"github.com/vcard-ledger/internal/platform/metrics"
)

// routeHandlers groups the handlers mounted by setupRouter
type routeHandlers struct {
	cards        *handler.CardHandler
	transactions *handler.TransactionHandler
	webhooks     *handler.WebhookHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	cfg *config.Config,
	h routeHandlers,
) {
	// Correlation and actor are set before the logger and metrics read them
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Actor())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Card lifecycle
		cards := v1.Group("/cards")
		{
			cards.POST("", h.cards.Create)
			cards.GET("/:id", h.cards.GetByID)
			cards.PATCH("/:id/status", h.cards.UpdateStatus)
			cards.PATCH("/:id/limits", h.cards.UpdateLimits)
			cards.GET("/:id/balance", h.cards.GetBalance)
			cards.GET("/:id/transactions", h.transactions.ListByCard)
		}

		// Money movement
		v1.POST("/authorizations", h.transactions.Authorize)
		v1.POST("/settlements", h.transactions.Settle)
		v1.POST("/refunds", h.transactions.Refund)

		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", h.transactions.GetByID)
			transactions.GET("/:id/entries", h.transactions.ListEntries)
		}

		// Processor notifications, signed with the shared webhook secret
		webhooks := v1.Group("/webhooks")
		webhooks.Use(middleware.WebhookSignature(logger, cfg.Webhook.Secret, cfg.Webhook.SignatureHeader))
		{
			webhooks.POST("/settlement", h.webhooks.Settlement)
			webhooks.POST("/refund", h.webhooks.Refund)
			webhooks.POST("/reversal", h.webhooks.Reversal)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
}
