package service

import (
	"github.com/flexprice/residence-billing/internal/cache"
	"github.com/flexprice/residence-billing/internal/config"
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	"github.com/flexprice/residence-billing/internal/domain/product"
	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	"github.com/flexprice/residence-billing/internal/domain/transaction"
	"github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/notification"
	"github.com/flexprice/residence-billing/internal/postgres"
	"github.com/flexprice/residence-billing/internal/sentry"
	"github.com/flexprice/residence-billing/internal/types"
	"go.uber.org/fx"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Cache  cache.Cache
	Sentry *sentry.Service

	// Repositories
	EntitlementRepo     entitlement.Repository
	ProductRepo         product.Repository
	RankingCategoryRepo rankingcategory.Repository
	TransactionRepo     transaction.Repository

	// Payment provider
	Provider stripe.Provider

	// Publishers
	NotificationPublisher notification.Publisher

	// RetryPolicy bounds the residence re-check done before a ranking record is written
	RetryPolicy types.RetryPolicy
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	sentry *sentry.Service,
	entitlementRepo entitlement.Repository,
	productRepo product.Repository,
	rankingCategoryRepo rankingcategory.Repository,
	transactionRepo transaction.Repository,
	provider stripe.Provider,
	notificationPublisher notification.Publisher,
) ServiceParams {
	return ServiceParams{
		Logger:                logger,
		Config:                config,
		DB:                    db,
		Cache:                 cache,
		Sentry:                sentry,
		EntitlementRepo:       entitlementRepo,
		ProductRepo:           productRepo,
		RankingCategoryRepo:   rankingCategoryRepo,
		TransactionRepo:       transactionRepo,
		Provider:              provider,
		NotificationPublisher: notificationPublisher,
		RetryPolicy:           config.Billing.ResidenceRecheck,
	}
}

// Module provides the billing services
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewServiceParams,
			NewProductResolver,
			NewEntitlementValidator,
			NewSubscriptionReconciler,
			NewCheckoutService,
			NewRankingSubscriptionSaga,
			NewFreePlanService,
			NewCatalogService,
		),
	)
}
