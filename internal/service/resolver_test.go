package service

import (
	"testing"

	"github.com/flexprice/residence-billing/internal/domain/product"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type ProductResolverSuite struct {
	billingServiceSuite
}

func TestProductResolver(t *testing.T) {
	suite.Run(t, new(ProductResolverSuite))
}

func (s *ProductResolverSuite) TestResolve() {
	testCases := []struct {
		name     string
		priceID  string
		expected *types.ProductReference
		notFound bool
	}{
		{
			name:     "residence product",
			priceID:  testResidencePrice,
			expected: types.NewResidenceProductReference("prod_residence_monthly", testResidencePrice, "stripe_prod_residence"),
		},
		{
			name:     "ranking category",
			priceID:  testLuxuryPrice,
			expected: types.NewRankingCategoryReference("rc_luxury", testLuxuryPrice),
		},
		{
			name:     "inactive category still resolves",
			priceID:  "price_rank_retired",
			expected: types.NewRankingCategoryReference("rc_inactive", "price_rank_retired"),
		},
		{
			name:     "unknown price",
			priceID:  "price_unknown",
			notFound: true,
		},
		{
			name:     "empty price",
			priceID:  "",
			notFound: true,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			ref, err := s.resolver.Resolve(s.GetContext(), tc.priceID)
			if tc.notFound {
				s.Error(err)
				s.True(ierr.IsNotFound(err))
				return
			}
			s.Require().NoError(err)
			s.Equal(tc.expected, ref)
		})
	}
}

func (s *ProductResolverSuite) TestResidenceCatalogTakesPrecedence() {
	// a product sharing the luxury category's price
	shared := &product.Product{
		ID:                "prod_shared",
		Name:              "Shared Price",
		Type:              types.ProductTypeSubscription,
		SubscriptionType:  types.SubscriptionTypeResidence,
		ProviderProductID: "stripe_prod_shared",
		ProviderPriceID:   testLuxuryPrice,
		Amount:            decimal.NewFromInt(15),
		Active:            true,
		BaseModel:         types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().ProductRepo.Create(s.GetContext(), shared.ID, shared))

	ref, err := s.resolver.Resolve(s.GetContext(), testLuxuryPrice)
	s.Require().NoError(err)
	s.True(ref.IsResidenceProduct())
	s.Equal(shared.ID, ref.EntitlementProductID())
	s.Nil(ref.ScopeCategoryID())
}

func (s *ProductResolverSuite) TestResolveIsCached() {
	ctx := s.GetContext()

	first, err := s.resolver.Resolve(ctx, testFamilyPrice)
	s.Require().NoError(err)

	s.GetStores().RankingCategoryRepo.Clear()

	second, err := s.resolver.Resolve(ctx, testFamilyPrice)
	s.Require().NoError(err)
	s.Equal(first, second)

	// misses are not cached
	_, err = s.resolver.Resolve(ctx, "price_later")
	s.True(ierr.IsNotFound(err))
	s.createCategory("rc_later", "Later", "price_later", true)
	ref, err := s.resolver.Resolve(ctx, "price_later")
	s.Require().NoError(err)
	s.Equal("rc_later", ref.EntitlementProductID())
}

type CatalogServiceSuite struct {
	billingServiceSuite
	service CatalogService
}

func TestCatalogService(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.billingServiceSuite.SetupTest()
	s.service = NewCatalogService(s.params)
}

func (s *CatalogServiceSuite) TestListResidenceProducts() {
	resp, err := s.service.ListResidenceProducts(s.GetContext())
	s.Require().NoError(err)
	s.Require().Equal(3, resp.Total)

	// ordered by amount
	s.Equal(s.testData.products.free.ID, resp.Items[0].ID)
	s.True(resp.Items[0].IsFree)
	s.Equal(s.testData.products.residence.ID, resp.Items[1].ID)
	s.Equal(s.testData.products.premium.ID, resp.Items[2].ID)
	s.True(resp.Items[2].IsPremium)
}

func (s *CatalogServiceSuite) TestListRankingProducts() {
	resp, err := s.service.ListRankingProducts(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, resp.Total)
	s.NotNil(resp.Items)
}

func (s *CatalogServiceSuite) TestListRankingCategories() {
	resp, err := s.service.ListRankingCategories(s.GetContext())
	s.Require().NoError(err)
	s.Require().Equal(2, resp.Total)
	s.Equal("Family", resp.Items[0].Name)
	s.Equal("Luxury", resp.Items[1].Name)
}
