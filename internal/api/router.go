package api

import (
	v1 "github.com/flexprice/residence-billing/internal/api/v1"
	"github.com/flexprice/residence-billing/internal/auth"
	"github.com/flexprice/residence-billing/internal/config"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/rest/middleware"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Webhook      *v1.WebhookHandler
	Subscription *v1.SubscriptionHandler
	Catalog      *v1.CatalogHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, authProvider auth.Provider) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	public := router.Group("/v1")
	public.GET("/health", handlers.Health.Health)

	// signed by the provider, not by a user token
	public.POST("/webhooks/stripe", handlers.Webhook.HandleStripeWebhook)

	catalog := public.Group("/subscriptions")
	{
		catalog.GET("/products/residence", handlers.Catalog.ListResidenceProducts)
		catalog.GET("/products/ranking", handlers.Catalog.ListRankingProducts)
		catalog.GET("/ranking-categories", handlers.Catalog.ListRankingCategories)
	}

	private := router.Group("/v1")
	private.Use(middleware.AuthenticateMiddleware(authProvider, logger))

	subscriptions := private.Group("/subscriptions")
	{
		subscriptions.POST("/residence", handlers.Subscription.CreateResidenceCheckout)
		subscriptions.POST("/ranking", handlers.Subscription.CreateRankingCheckout)
		subscriptions.POST("/ranking/direct", handlers.Subscription.CreateDirectRankingSubscription)

		residence := subscriptions.Group("/residence/:residenceId")
		residence.GET("", handlers.Subscription.ListEntitlements)
		residence.POST("/free", handlers.Subscription.AssignFreePlan)
		residence.GET("/status", handlers.Subscription.GetResidenceSubscriptionStatus)
		residence.GET("/validate-ranking", handlers.Subscription.ValidateRankingApplication)
		residence.GET("/ranking-category/:rankingCategoryId/validate-application", handlers.Subscription.ValidateCategoryApplication)
	}

	return router
}
