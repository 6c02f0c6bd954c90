package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/infrastructure/auth"
	"github.com/subsync/backend/internal/infrastructure/config"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/interfaces/http/handler"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
)

// Handlers bundles the HTTP handlers registered by the router.
type Handlers struct {
	System       *handler.SystemHandler
	Checkout     *handler.CheckoutHandler
	Subscription *handler.SubscriptionHandler
	Admin        *handler.AdminHandler
}

// New builds the gin engine with the full middleware stack and all routes.
func New(cfg *config.Config, log *zap.Logger, jwtService *auth.JWTService, h Handlers) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(logger.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", h.System.Health)

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtService))
	{
		api.POST("/checkout/orders", h.Checkout.Submit)

		api.GET("/subscriptions", h.Subscription.List)
		api.POST("/subscriptions/:id/actions/:action", h.Subscription.Apply)
		api.GET("/subscriptions/:id/next-delivery", h.Subscription.NextDelivery)

		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(auth.RoleCSR))
		{
			admin.POST("/jobs/:job", h.Admin.RunJob)
			admin.GET("/orders/:order_no/provider-response", h.Admin.ProviderResponse)
		}
	}

	return engine
}
