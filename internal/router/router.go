package router

import (
	"webcollect/config"
	"webcollect/internal/handler"
	"webcollect/internal/logging"
	"webcollect/internal/middleware"
	"webcollect/internal/repository"
	"webcollect/internal/service"
	"webcollect/pkg/webcollect"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers onto a gin engine. The
// returned limiter should be closed on shutdown.
func Setup(cfg *config.Config, db *gorm.DB, gateway *webcollect.Client, log *logging.StdLogger) (*gin.Engine, *middleware.InMemoryRateLimiter) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)

	// Repositories
	orderRepo := repository.NewOrderRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Services
	customerSvc := service.NewCustomerService(customerRepo, gateway, log.Named("securitybank-customer"))
	checkoutSvc := service.NewCheckoutService(gateway, customerSvc, paymentRepo, cfg, log.Named("securitybank-webcollect"))
	webhookSvc := service.NewWebhookService(orderRepo, log.Named("securitybank-webhook"), cfg.Webhook.RedeliverOnFailure)

	// Handlers
	checkoutHandler := handler.NewCheckoutHandler(orderRepo, paymentRepo, checkoutSvc, log.Named("checkout"))
	webhookHandler := handler.NewWebhookHandler(webhookSvc, log.Named("securitybank-webhook"))
	gatewayHandler := handler.NewGatewayHandler(cfg)

	signature := middleware.WebhookSignature(cfg.Webhook.Secret)

	api := r.Group("/api/v1")
	{
		// Processor deliveries are not rate limited.
		api.POST("/webhooks/"+config.WebhookRoute, signature, webhookHandler.Handle)

		shop := api.Group("")
		if cfg.Server.RateLimit > 0 {
			shop.Use(middleware.RateLimit(limiter))
		}
		shop.GET("/gateway", gatewayHandler.Get)
		orders := shop.Group("/orders/:id", middleware.OptionalAuth(&cfg.JWT))
		orders.POST("/checkout", checkoutHandler.Create)
		orders.GET("/payment", checkoutHandler.Status)
	}
	r.POST("/", webhookHandler.RequireRouteToken, signature, webhookHandler.Handle)

	return r, limiter
}
