package service

import (
	"testing"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
)

type FreePlanServiceSuite struct {
	billingServiceSuite
	service    FreePlanService
	reconciler SubscriptionReconciler
}

func TestFreePlanService(t *testing.T) {
	suite.Run(t, new(FreePlanServiceSuite))
}

func (s *FreePlanServiceSuite) SetupTest() {
	s.billingServiceSuite.SetupTest()
	s.service = NewFreePlanService(s.params)
	s.reconciler = NewSubscriptionReconciler(s.params, s.resolver, s.validator)
}

func (s *FreePlanServiceSuite) TestAssignFreePlan() {
	resp, err := s.service.AssignFreePlan(s.GetContext(), s.testData.userID, testResidenceID)
	s.Require().NoError(err)

	s.Equal(types.FreePlanSubscriptionID, resp.ProviderSubscriptionID)
	s.Equal(types.SubscriptionStatusActive, resp.Status)
	s.Equal(s.testData.products.free.ID, resp.ProductID)
	s.Nil(resp.RankingCategoryID)
	s.Equal(freePlanPeriodEnd, resp.CurrentPeriodEnd)

	record, err := s.GetStores().EntitlementRepo.Get(s.GetContext(), resp.ID)
	s.Require().NoError(err)
	s.Equal("free_plan", record.Metadata[types.MetadataKeySource])

	// the free plan unlocks ranking applications
	gate, err := s.validator.ValidateRankingApplication(s.GetContext(), s.testData.userID, testResidenceID)
	s.NoError(err)
	s.True(gate.CanApply)
}

func (s *FreePlanServiceSuite) TestAssignFreePlanIsIdempotent() {
	first, err := s.service.AssignFreePlan(s.GetContext(), s.testData.userID, testResidenceID)
	s.Require().NoError(err)
	second, err := s.service.AssignFreePlan(s.GetContext(), s.testData.userID, testResidenceID)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(1, s.GetStores().EntitlementRepo.Len())
}

func (s *FreePlanServiceSuite) TestAssignFreePlanKeepsPaidSubscription() {
	paid := s.seedRecord(testResidenceID, "", "sub_paid", types.SubscriptionStatusActive)

	resp, err := s.service.AssignFreePlan(s.GetContext(), s.testData.userID, testResidenceID)
	s.Require().NoError(err)
	s.Equal(paid.ID, resp.ID)
	s.Equal(1, s.GetStores().EntitlementRepo.Len())
}

func (s *FreePlanServiceSuite) TestPaidCheckoutSupersedesFreePlan() {
	ctx := s.GetContext()
	free, err := s.service.AssignFreePlan(ctx, s.testData.userID, testResidenceID)
	s.Require().NoError(err)

	metadata := s.residenceMetadata(testResidenceID)
	s.putSubscription("sub_paid", stripe.SubscriptionStatusActive, metadata, testResidencePrice)
	s.NoError(s.reconciler.HandleCheckoutCompleted(ctx, &stripe.CheckoutSession{
		ID:            "cs_paid",
		Subscription:  &stripe.Subscription{ID: "sub_paid"},
		Metadata:      metadata,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}))

	record, err := s.GetStores().EntitlementRepo.Get(ctx, free.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, record.Status)

	active, err := s.GetStores().EntitlementRepo.ListActiveResidence(ctx, s.testData.userID, testResidenceID)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("sub_paid", active[0].ProviderSubscriptionID)
}

func (s *FreePlanServiceSuite) TestAssignFreePlanErrors() {
	s.Run("missing residence", func() {
		_, err := s.service.AssignFreePlan(s.GetContext(), s.testData.userID, "")
		s.Error(err)
		s.True(ierr.IsValidation(err))
	})

	s.Run("free product not configured", func() {
		s.testData.products.free.Active = false
		defer func() { s.testData.products.free.Active = true }()

		_, err := s.service.AssignFreePlan(s.GetContext(), s.testData.userID, testResidenceID)
		s.Error(err)
		s.True(errors.Is(err, ierr.ErrSystem))
	})

	s.Equal(0, s.GetStores().EntitlementRepo.Len())
}
