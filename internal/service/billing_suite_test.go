package service

import (
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	"github.com/flexprice/residence-billing/internal/domain/product"
	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	"github.com/flexprice/residence-billing/internal/notification"
	"github.com/flexprice/residence-billing/internal/testutil"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

const (
	testResidenceID      = "res_lakeview"
	testOtherResidenceID = "res_harbour"
	testResidencePrice   = "price_residence_monthly"
	testLuxuryPrice      = "price_rank_luxury"
	testFamilyPrice      = "price_rank_family"
)

// billingServiceSuite wires the billing services on top of the in-memory
// stores and seeds a small catalog
type billingServiceSuite struct {
	testutil.BaseServiceTestSuite
	params    ServiceParams
	resolver  ProductResolver
	validator EntitlementValidator
	testData  struct {
		userID   string
		products struct {
			residence *product.Product
			premium   *product.Product
			free      *product.Product
		}
		categories struct {
			luxury   *rankingcategory.Category
			family   *rankingcategory.Category
			unpriced *rankingcategory.Category
			inactive *rankingcategory.Category
		}
	}
}

func (s *billingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupServices()
	s.setupTestData()
}

func (s *billingServiceSuite) setupServices() {
	stores := s.GetStores()
	cfg := s.GetConfig()

	s.params = ServiceParams{
		Logger:                s.GetLogger(),
		Config:                cfg,
		DB:                    s.GetDB(),
		Cache:                 s.GetCache(),
		Sentry:                s.GetSentry(),
		EntitlementRepo:       stores.EntitlementRepo,
		ProductRepo:           stores.ProductRepo,
		RankingCategoryRepo:   stores.RankingCategoryRepo,
		TransactionRepo:       stores.TransactionRepo,
		Provider:              s.GetProvider(),
		NotificationPublisher: notification.NewPublisher(s.GetPubSub(), cfg, s.GetLogger()),
		RetryPolicy:           cfg.Billing.ResidenceRecheck,
	}
	s.resolver = NewProductResolver(s.params)
	s.validator = NewEntitlementValidator(s.params)
}

func (s *billingServiceSuite) setupTestData() {
	ctx := s.GetContext()
	stores := s.GetStores()
	s.testData.userID = testutil.DefaultUserID

	s.testData.products.residence = &product.Product{
		ID:                "prod_residence_monthly",
		Name:              "Residence Monthly",
		FeatureKey:        "residence_listing",
		Type:              types.ProductTypeSubscription,
		SubscriptionType:  types.SubscriptionTypeResidence,
		ProviderProductID: "stripe_prod_residence",
		ProviderPriceID:   testResidencePrice,
		Amount:            decimal.NewFromInt(29),
		Currency:          "usd",
		Interval:          "month",
		Active:            true,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.ProductRepo.Create(ctx, s.testData.products.residence.ID, s.testData.products.residence))

	s.testData.products.premium = &product.Product{
		ID:                "prod_residence_premium",
		Name:              "Residence Premium",
		FeatureKey:        "residence_listing_premium",
		Type:              types.ProductTypeSubscription,
		SubscriptionType:  types.SubscriptionTypeResidence,
		ProviderProductID: "stripe_prod_residence_premium",
		ProviderPriceID:   "price_residence_premium",
		Amount:            decimal.NewFromInt(99),
		Currency:          "usd",
		Interval:          "month",
		Active:            true,
		IsPremium:         true,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.ProductRepo.Create(ctx, s.testData.products.premium.ID, s.testData.products.premium))

	s.testData.products.free = &product.Product{
		ID:               "prod_residence_free",
		Name:             "Residence Free",
		FeatureKey:       types.FreeResidencePlanFeatureKey,
		Type:             types.ProductTypeSubscription,
		SubscriptionType: types.SubscriptionTypeResidence,
		Amount:           decimal.Zero,
		Currency:         "usd",
		Active:           true,
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	s.NoError(stores.ProductRepo.Create(ctx, s.testData.products.free.ID, s.testData.products.free))

	s.testData.categories.luxury = s.createCategory("rc_luxury", "Luxury", testLuxuryPrice, true)
	s.testData.categories.family = s.createCategory("rc_family", "Family", testFamilyPrice, true)
	s.testData.categories.unpriced = s.createCategory("rc_unpriced", "Unpriced", "", true)
	s.testData.categories.inactive = s.createCategory("rc_inactive", "Retired", "price_rank_retired", false)
}

func (s *billingServiceSuite) createCategory(id, name, priceID string, active bool) *rankingcategory.Category {
	category := &rankingcategory.Category{
		ID:        id,
		Name:      name,
		Slug:      id,
		Active:    active,
		Amount:    decimal.NewFromInt(15),
		Currency:  "usd",
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	if priceID != "" {
		category.ProviderPriceID = lo.ToPtr(priceID)
	}
	s.NoError(s.GetStores().RankingCategoryRepo.Create(s.GetContext(), id, category))
	return category
}

// seedRecord stores an entitlement record directly
func (s *billingServiceSuite) seedRecord(residenceID, categoryID, providerSubID string, status types.SubscriptionStatus) *entitlement.Record {
	productID := s.testData.products.residence.ID
	priceID := testResidencePrice
	if categoryID != "" {
		productID = categoryID
		priceID = testLuxuryPrice
	}
	record := entitlement.NewRecord(
		types.NewScope(s.testData.userID, residenceID, categoryID),
		productID,
		providerSubID,
		priceID,
		status,
		s.GetNow().AddDate(0, 1, 0),
	)
	record.BaseModel = types.GetDefaultBaseModel(s.GetContext())

	saved, err := s.GetStores().EntitlementRepo.Upsert(s.GetContext(), record)
	s.Require().NoError(err)
	return saved
}

// residenceMetadata is the metadata a residence checkout puts on the subscription
func (s *billingServiceSuite) residenceMetadata(residenceID string) map[string]string {
	return map[string]string{
		types.MetadataKeyUserID:           s.testData.userID,
		types.MetadataKeyResidenceID:      residenceID,
		types.MetadataKeySubscriptionType: string(types.SubscriptionTypeResidence),
		types.MetadataKeyProductID:        s.testData.products.residence.ID,
	}
}

// rankingMetadata is the metadata a ranking checkout puts on the subscription
func (s *billingServiceSuite) rankingMetadata(residenceID, categoryID string) map[string]string {
	return map[string]string{
		types.MetadataKeyUserID:            s.testData.userID,
		types.MetadataKeyResidenceID:       residenceID,
		types.MetadataKeyRankingCategoryID: categoryID,
		types.MetadataKeySubscriptionType:  string(types.SubscriptionTypeRanking),
	}
}

// putSubscription registers a provider subscription with the fake provider
func (s *billingServiceSuite) putSubscription(id string, status stripe.SubscriptionStatus, metadata map[string]string, priceIDs ...string) *stripe.Subscription {
	sub := testutil.NewStripeSubscription(id, status, metadata, priceIDs...)
	s.GetProvider().PutSubscription(sub)
	return sub
}

func (s *billingServiceSuite) recordsFor(providerSubID string) []*entitlement.Record {
	records, err := s.GetStores().EntitlementRepo.ListByProviderSubscriptionID(s.GetContext(), providerSubID)
	s.Require().NoError(err)
	return records
}

func (s *billingServiceSuite) notificationNames() []types.NotificationName {
	return lo.Map(s.GetPubSub().GetNotifications(testutil.NotificationTopic), func(n *types.Notification, _ int) types.NotificationName {
		return n.Name
	})
}
