package service

import (
	"testing"

	"github.com/flexprice/residence-billing/internal/api/dto"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type CheckoutServiceSuite struct {
	billingServiceSuite
	service CheckoutService
}

func TestCheckoutService(t *testing.T) {
	suite.Run(t, new(CheckoutServiceSuite))
}

func (s *CheckoutServiceSuite) SetupTest() {
	s.billingServiceSuite.SetupTest()
	s.service = NewCheckoutService(s.params, s.validator)
}

func (s *CheckoutServiceSuite) TestCreateResidenceCheckout() {
	resp, err := s.service.CreateResidenceCheckout(s.GetContext(), &dto.CreateResidenceCheckoutRequest{
		UserID:      s.testData.userID,
		Email:       "owner@residences.test",
		ResidenceID: testResidenceID,
	})
	s.Require().NoError(err)
	s.NotEmpty(resp.SessionID)
	s.NotEmpty(resp.URL)

	sessions := s.GetProvider().CheckoutSessions
	s.Require().Len(sessions, 1)
	in := sessions[0]

	// the cheapest purchasable residence product is sold
	s.Equal(testResidencePrice, in.PriceID)
	s.NotEmpty(in.CustomerID)
	s.Equal("https://app.residences.test"+checkoutSuccessPath, in.SuccessURL)
	s.Equal("https://app.residences.test"+checkoutCancelPath, in.CancelURL)
	s.Equal(map[string]string{
		types.MetadataKeyUserID:           s.testData.userID,
		types.MetadataKeyResidenceID:      testResidenceID,
		types.MetadataKeySubscriptionType: string(types.SubscriptionTypeResidence),
		types.MetadataKeyProductID:        s.testData.products.residence.ID,
	}, in.Metadata)

	// checkout never writes entitlements
	s.Equal(0, s.GetStores().EntitlementRepo.Len())
}

func (s *CheckoutServiceSuite) TestCreateResidenceCheckoutKeepsCallerURLs() {
	_, err := s.service.CreateResidenceCheckout(s.GetContext(), &dto.CreateResidenceCheckoutRequest{
		UserID:      s.testData.userID,
		ResidenceID: testResidenceID,
		SuccessURL:  "https://partner.test/done",
		CancelURL:   "https://partner.test/back",
	})
	s.Require().NoError(err)

	in := s.GetProvider().CheckoutSessions[0]
	s.Equal("https://partner.test/done", in.SuccessURL)
	s.Equal("https://partner.test/back", in.CancelURL)
}

func (s *CheckoutServiceSuite) TestCreateResidenceCheckoutErrors() {
	s.Run("no redirect urls configured", func() {
		s.params.Config.Billing.FrontendURL = ""
		defer func() { s.params.Config.Billing.FrontendURL = "https://app.residences.test" }()

		_, err := s.service.CreateResidenceCheckout(s.GetContext(), &dto.CreateResidenceCheckoutRequest{
			UserID:      s.testData.userID,
			ResidenceID: testResidenceID,
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("missing residence", func() {
		_, err := s.service.CreateResidenceCheckout(s.GetContext(), &dto.CreateResidenceCheckoutRequest{
			UserID: s.testData.userID,
		})
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("no purchasable product", func() {
		s.testData.products.residence.Active = false
		s.testData.products.premium.Active = false

		_, err := s.service.CreateResidenceCheckout(s.GetContext(), &dto.CreateResidenceCheckoutRequest{
			UserID:      s.testData.userID,
			ResidenceID: testResidenceID,
		})
		s.Error(err)
		s.True(ierr.IsNotFound(err))
	})

	s.Empty(s.GetProvider().CheckoutSessions)
}

func (s *CheckoutServiceSuite) TestCreateRankingCheckoutRequiresResidence() {
	_, err := s.service.CreateRankingCheckout(s.GetContext(), &dto.CreateRankingCheckoutRequest{
		UserID:            s.testData.userID,
		ResidenceID:       testResidenceID,
		RankingCategoryID: s.testData.categories.luxury.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
	s.Empty(s.GetProvider().CheckoutSessions)
}

func (s *CheckoutServiceSuite) TestCreateRankingCheckoutIgnoresOtherResidences() {
	s.seedRecord(testOtherResidenceID, "", "sub_other", types.SubscriptionStatusActive)
	s.seedRecord(testResidenceID, "", "sub_lapsed", types.SubscriptionStatusPastDue)

	_, err := s.service.CreateRankingCheckout(s.GetContext(), &dto.CreateRankingCheckoutRequest{
		UserID:            s.testData.userID,
		ResidenceID:       testResidenceID,
		RankingCategoryID: s.testData.categories.luxury.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
	s.Empty(s.GetProvider().CheckoutSessions)
}

func (s *CheckoutServiceSuite) TestCreateRankingCheckout() {
	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)
	category := s.testData.categories.family

	resp, err := s.service.CreateRankingCheckout(s.GetContext(), &dto.CreateRankingCheckoutRequest{
		UserID:            s.testData.userID,
		ResidenceID:       testResidenceID,
		RankingCategoryID: category.ID,
	})
	s.Require().NoError(err)
	s.NotEmpty(resp.URL)

	in := s.GetProvider().CheckoutSessions[0]
	s.Equal(testFamilyPrice, in.PriceID)
	s.Equal(s.rankingMetadata(testResidenceID, category.ID), in.Metadata)
}

func (s *CheckoutServiceSuite) TestCreateRankingCheckoutUnsellableCategory() {
	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)

	for _, id := range []string{"rc_missing", s.testData.categories.unpriced.ID, s.testData.categories.inactive.ID} {
		_, err := s.service.CreateRankingCheckout(s.GetContext(), &dto.CreateRankingCheckoutRequest{
			UserID:            s.testData.userID,
			ResidenceID:       testResidenceID,
			RankingCategoryID: id,
		})
		s.Error(err, id)
		s.True(ierr.IsNotFound(err), id)
	}
	s.Empty(s.GetProvider().CheckoutSessions)
}

func (s *CheckoutServiceSuite) TestGetResidenceSubscriptionStatus() {
	resp, err := s.service.GetResidenceSubscriptionStatus(s.GetContext(), s.testData.userID, testResidenceID)
	s.Require().NoError(err)
	s.Equal(&dto.SubscriptionStatusResponse{}, resp)

	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)
	s.seedRecord(testResidenceID, s.testData.categories.luxury.ID, "sub_rank_1", types.SubscriptionStatusActive)
	s.seedRecord(testResidenceID, s.testData.categories.family.ID, "sub_rank_2", types.SubscriptionStatusActive)
	s.seedRecord(testResidenceID, s.testData.categories.family.ID, "sub_rank_3", types.SubscriptionStatusCanceled)
	s.seedRecord(testOtherResidenceID, s.testData.categories.luxury.ID, "sub_rank_4", types.SubscriptionStatusActive)

	resp, err = s.service.GetResidenceSubscriptionStatus(s.GetContext(), s.testData.userID, testResidenceID)
	s.Require().NoError(err)
	s.Equal(&dto.SubscriptionStatusResponse{
		HasResidenceSubscription:  true,
		HasRankingSubscriptions:   true,
		TotalRankingSubscriptions: 2,
	}, resp)
}

func (s *CheckoutServiceSuite) TestListEntitlements() {
	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)
	s.seedRecord(testResidenceID, s.testData.categories.luxury.ID, "sub_rank", types.SubscriptionStatusCanceled)
	s.seedRecord(testOtherResidenceID, "", "sub_other", types.SubscriptionStatusActive)

	resp, err := s.service.ListEntitlements(s.GetContext(), s.testData.userID, testResidenceID)
	s.Require().NoError(err)
	s.Equal(2, resp.Total)
	for _, item := range resp.Items {
		s.Equal(testResidenceID, item.ResidenceID)
	}

	resp, err = s.service.ListEntitlements(s.GetContext(), "user_other", testResidenceID)
	s.Require().NoError(err)
	s.Equal(0, resp.Total)
	s.NotNil(resp.Items)
}

func (s *CheckoutServiceSuite) TestCreateResidenceCheckoutRejectsActiveSubscription() {
	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)

	_, err := s.service.CreateResidenceCheckout(s.GetContext(), &dto.CreateResidenceCheckoutRequest{
		UserID:      s.testData.userID,
		ResidenceID: testResidenceID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
	s.Empty(s.GetProvider().CheckoutSessions)
	s.Zero(s.GetProvider().CustomerCount())
}

func (s *CheckoutServiceSuite) TestCreateResidenceCheckoutUpgradesFreePlan() {
	s.seedRecord(testResidenceID, "", types.FreePlanSubscriptionID, types.SubscriptionStatusActive)
	s.seedRecord(testOtherResidenceID, "", "sub_other", types.SubscriptionStatusActive)
	s.seedRecord(testResidenceID, "", "sub_lapsed", types.SubscriptionStatusCanceled)

	_, err := s.service.CreateResidenceCheckout(s.GetContext(), &dto.CreateResidenceCheckoutRequest{
		UserID:      s.testData.userID,
		ResidenceID: testResidenceID,
	})
	s.Require().NoError(err)
	s.Len(s.GetProvider().CheckoutSessions, 1)
}

func (s *CheckoutServiceSuite) TestCreateRankingCheckoutRejectsSubscribedCategory() {
	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)
	s.seedRecord(testResidenceID, s.testData.categories.luxury.ID, "sub_rank", types.SubscriptionStatusActive)

	_, err := s.service.CreateRankingCheckout(s.GetContext(), &dto.CreateRankingCheckoutRequest{
		UserID:            s.testData.userID,
		ResidenceID:       testResidenceID,
		RankingCategoryID: s.testData.categories.luxury.ID,
	})
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
	s.Empty(s.GetProvider().CheckoutSessions)

	// another category of the same residence is still sellable
	_, err = s.service.CreateRankingCheckout(s.GetContext(), &dto.CreateRankingCheckoutRequest{
		UserID:            s.testData.userID,
		ResidenceID:       testResidenceID,
		RankingCategoryID: s.testData.categories.family.ID,
	})
	s.Require().NoError(err)
	s.Len(s.GetProvider().CheckoutSessions, 1)
}
