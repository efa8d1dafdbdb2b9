package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/residence-billing/internal/api"
	v1 "github.com/flexprice/residence-billing/internal/api/v1"
	"github.com/flexprice/residence-billing/internal/auth"
	"github.com/flexprice/residence-billing/internal/cache"
	"github.com/flexprice/residence-billing/internal/config"
	"github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/notification"
	"github.com/flexprice/residence-billing/internal/postgres"
	"github.com/flexprice/residence-billing/internal/repository"
	"github.com/flexprice/residence-billing/internal/sentry"
	"github.com/flexprice/residence-billing/internal/service"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/flexprice/residence-billing/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	// a missing .env is fine outside local development
	_ = godotenv.Load()

	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Auth
			auth.NewProvider,

			// Payment provider
			stripe.NewClient,
			stripe.NewProvider,
			stripe.NewWebhookVerifier,
		),
		sentry.Module(),
		postgres.Module(),
		repository.Module(),
		notification.Module,
		service.Module(),
	)

	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	verifier *stripe.WebhookVerifier,
	reconciler service.SubscriptionReconciler,
	checkoutService service.CheckoutService,
	saga service.RankingSubscriptionSaga,
	freePlanService service.FreePlanService,
	entitlementValidator service.EntitlementValidator,
	catalogService service.CatalogService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(logger),
		Webhook:      v1.NewWebhookHandler(verifier, reconciler, logger),
		Subscription: v1.NewSubscriptionHandler(checkoutService, saga, freePlanService, entitlementValidator, logger),
		Catalog:      v1.NewCatalogHandler(catalogService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, authProvider auth.Provider) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, authProvider)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeConsumer:
		// the notification module drives the router on its own
		log.Info("running in consumer mode, API server not started")
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}
