package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oneonone97/Ecom-sub000/internal/http/handlers"
	"github.com/oneonone97/Ecom-sub000/internal/http/middleware"
	"github.com/oneonone97/Ecom-sub000/internal/modules/checkout"
	"github.com/oneonone97/Ecom-sub000/pkg/metrics"
)

// NewRouter wires the middleware chain and routes. Webhooks sit outside the
// auth group: providers authenticate with signatures, not sessions.
func NewRouter(logger *slog.Logger, svc *checkout.Service) *gin.Engine {
	r := gin.New()

	// ErrorHandler wraps Recovery so a recovered panic still renders the
	// JSON error envelope.
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.Recovery(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	ch := handlers.NewCheckoutHandler(logger, svc)
	wh := handlers.NewWebhookHandler(logger, svc)

	r.POST("/webhooks/:gateway", wh.Handle)

	api := r.Group("/api", middleware.RequireAuth())
	{
		api.POST("/checkout", ch.Initiate)
		api.GET("/orders/:id", ch.GetOrder)
		api.POST("/orders/:id/verify", ch.Verify)
		api.POST("/orders/:id/cancel", ch.Cancel)
		api.POST("/orders/:id/ship", ch.Ship)
		api.GET("/payments/:mtid/status", ch.Status)
	}

	return r
}
