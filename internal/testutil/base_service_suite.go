package testutil

import (
	"context"
	"time"

	"github.com/flexprice/residence-billing/internal/cache"
	"github.com/flexprice/residence-billing/internal/config"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/sentry"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/flexprice/residence-billing/internal/validator"
	"github.com/stretchr/testify/suite"
)

// NotificationTopic is the topic the test configuration publishes to
const NotificationTopic = "billing_notifications"

// Stores holds the in-memory repositories for testing
type Stores struct {
	EntitlementRepo     *InMemoryEntitlementStore
	ProductRepo         *InMemoryProductStore
	RankingCategoryRepo *InMemoryRankingCategoryStore
	TransactionRepo     *InMemoryTransactionStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	db       *MockPostgresClient
	provider *FakeStripeProvider
	pubSub   *InMemoryPubSub
	cache    cache.Cache
	sentry   *sentry.Service
	logger   *logger.Logger
	config   *config.Configuration
	now      time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = &config.Configuration{
		Logging: config.LoggingConfig{
			Level: types.LogLevelDebug,
		},
		Billing: config.BillingConfig{
			FrontendURL: "https://app.residences.test",
			ResidenceRecheck: types.RetryPolicy{
				MaxAttempts: 2,
				Delay:       0,
			},
			FreePlanFeatureKey: types.FreeResidencePlanFeatureKey,
		},
		Cache: config.CacheConfig{
			Enabled: true,
			TTL:     time.Minute,
		},
		Notification: config.NotificationConfig{
			Enabled: true,
			Topic:   NotificationTopic,
			PubSub:  types.MemoryPubSub,
		},
	}
	s.logger = logger.NewNoopLogger()
	s.sentry = sentry.NewSentryService(s.config, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.now = time.Now().UTC()
	s.stores = Stores{
		EntitlementRepo:     NewInMemoryEntitlementStore(),
		ProductRepo:         NewInMemoryProductStore(),
		RankingCategoryRepo: NewInMemoryRankingCategoryStore(),
		TransactionRepo:     NewInMemoryTransactionStore(),
	}
	s.db = NewMockPostgresClient(s.logger)
	s.provider = NewFakeStripeProvider()
	s.pubSub = NewInMemoryPubSub()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.EntitlementRepo.Clear()
	s.stores.ProductRepo.Clear()
	s.stores.RankingCategoryRepo.Clear()
	s.stores.TransactionRepo.Clear()
	s.pubSub.ClearMessages()
	s.cache.Flush(s.ctx)
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetProvider returns the fake payment provider
func (s *BaseServiceTestSuite) GetProvider() *FakeStripeProvider {
	return s.provider
}

// GetPubSub returns the pubsub notifications are published to
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetSentry returns a sentry service with reporting disabled
func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
