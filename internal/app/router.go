package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taximeter/internal/handler"
	"taximeter/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionHandler  *handler.SessionHandler
	SettingsHandler *handler.SettingsHandler
	RateHandler     *handler.RateHandler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
	Logger          *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		v1.GET("/rates", deps.RateHandler.List)

		// Meter settings routes.
		meters := v1.Group("/meters/:meter_id")
		{
			meters.GET("/settings", deps.SettingsHandler.Get)
			meters.PUT("/settings", deps.SettingsHandler.Update)
			meters.PUT("/settings/payment-qr", deps.SettingsHandler.SetPaymentQR)
		}

		// Session routes.
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", deps.SessionHandler.Create)
			sessions.GET("/:id", deps.SessionHandler.Get)
			sessions.DELETE("/:id", deps.SessionHandler.Close)
			sessions.POST("/:id/begin", deps.SessionHandler.Begin)
			sessions.POST("/:id/stop", deps.SessionHandler.Stop)
			sessions.POST("/:id/location", deps.SessionHandler.PushLocation)
			sessions.POST("/:id/advance", deps.SessionHandler.AdvanceToExtras)
			sessions.POST("/:id/extras", deps.SessionHandler.SubmitExtras)
			sessions.GET("/:id/tips", deps.SessionHandler.TipQuotes)
			sessions.POST("/:id/tip", deps.SessionHandler.SelectTip)
			sessions.POST("/:id/tip/custom", deps.SessionHandler.SubmitCustomTip)
			sessions.POST("/:id/finalize", deps.SessionHandler.Finalize)
			sessions.POST("/:id/reset", deps.SessionHandler.Reset)
		}
	}

	return router
}
