package service

import (
	"testing"

	"github.com/flexprice/residence-billing/internal/api/dto"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
)

type RankingSubscriptionSagaSuite struct {
	billingServiceSuite
	saga RankingSubscriptionSaga
}

func TestRankingSubscriptionSaga(t *testing.T) {
	suite.Run(t, new(RankingSubscriptionSagaSuite))
}

func (s *RankingSubscriptionSagaSuite) SetupTest() {
	s.billingServiceSuite.SetupTest()
	s.saga = NewRankingSubscriptionSaga(s.params, s.validator)
}

func (s *RankingSubscriptionSagaSuite) request(categoryIDs ...string) *dto.CreateDirectRankingSubscriptionRequest {
	return &dto.CreateDirectRankingSubscriptionRequest{
		UserID:             s.testData.userID,
		Email:              "owner@residences.test",
		ResidenceID:        testResidenceID,
		RankingCategoryIDs: categoryIDs,
		PaymentMethodID:    "pm_card_visa",
	}
}

func (s *RankingSubscriptionSagaSuite) withResidence() {
	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)
}

func (s *RankingSubscriptionSagaSuite) TestSubscribeCreatesOneSubscriptionPerCategory() {
	s.withResidence()
	luxury, family := s.testData.categories.luxury, s.testData.categories.family

	resp, err := s.saga.Subscribe(s.GetContext(), s.request(luxury.ID, family.ID))
	s.Require().NoError(err)
	s.Equal(testResidenceID, resp.ResidenceID)
	s.Require().Len(resp.RankingSubscriptions, 2)

	provider := s.GetProvider()
	s.Equal(2, provider.CreatedCount())
	s.Equal([]string{"pm_card_visa"}, provider.AttachedMethods)

	keys := lo.Map(provider.CreatedInputs, func(in *stripeIntegration.SubscriptionInput, _ int) string { return in.IdempotencyKey })
	s.Len(lo.Uniq(keys), 2)

	for _, result := range resp.RankingSubscriptions {
		s.Equal(types.SubscriptionStatusActive, result.Status)

		records := s.recordsFor(result.ProviderSubscriptionID)
		s.Require().Len(records, 1)
		record := records[0]
		s.Equal(result.SubscriptionID, record.ID)
		s.Equal(result.RankingCategoryID, lo.FromPtr(record.RankingCategoryID))
		s.Equal("direct", record.Metadata[types.MetadataKeySource])
	}

	for _, in := range provider.CreatedInputs {
		s.Equal(s.testData.userID, in.Metadata[types.MetadataKeyUserID])
		s.Equal(testResidenceID, in.Metadata[types.MetadataKeyResidenceID])
		s.Equal(string(types.SubscriptionTypeRanking), in.Metadata[types.MetadataKeySubscriptionType])
		s.Contains([]string{luxury.ID, family.ID}, in.Metadata[types.MetadataKeyRankingCategoryID])
	}

	s.Equal(2, s.GetStores().TransactionRepo.Len())
	s.Equal(2, lo.Count(s.notificationNames(), types.NotificationSubscriptionActivated))
}

func (s *RankingSubscriptionSagaSuite) TestRetrySameRequestDoesNotDuplicate() {
	s.withResidence()
	req := s.request(s.testData.categories.luxury.ID)

	first, err := s.saga.Subscribe(s.GetContext(), req)
	s.Require().NoError(err)
	second, err := s.saga.Subscribe(s.GetContext(), req)
	s.Require().NoError(err)

	s.Equal(first.RankingSubscriptions[0].ProviderSubscriptionID, second.RankingSubscriptions[0].ProviderSubscriptionID)
	s.Len(s.recordsFor(first.RankingSubscriptions[0].ProviderSubscriptionID), 1)
	s.Equal(1, s.GetStores().TransactionRepo.Len())
}

func (s *RankingSubscriptionSagaSuite) TestRequiresActiveResidence() {
	_, err := s.saga.Subscribe(s.GetContext(), s.request(s.testData.categories.luxury.ID))
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))
	s.Equal(0, s.GetProvider().CreatedCount())
	s.Empty(s.GetProvider().AttachedMethods)
}

func (s *RankingSubscriptionSagaSuite) TestRejectsInvalidRequests() {
	s.withResidence()

	testCases := []struct {
		name    string
		req     *dto.CreateDirectRankingSubscriptionRequest
		checkFn func(error) bool
	}{
		{
			name:    "no categories",
			req:     s.request(),
			checkFn: ierr.IsValidation,
		},
		{
			name:    "duplicate categories",
			req:     s.request(s.testData.categories.luxury.ID, s.testData.categories.luxury.ID),
			checkFn: ierr.IsValidation,
		},
		{
			name: "missing payment method",
			req: func() *dto.CreateDirectRankingSubscriptionRequest {
				r := s.request(s.testData.categories.luxury.ID)
				r.PaymentMethodID = ""
				return r
			}(),
			checkFn: ierr.IsValidation,
		},
		{
			name: "anonymous caller",
			req: func() *dto.CreateDirectRankingSubscriptionRequest {
				r := s.request(s.testData.categories.luxury.ID)
				r.UserID = ""
				return r
			}(),
			checkFn: ierr.IsPermissionDenied,
		},
		{
			name:    "unknown category",
			req:     s.request(s.testData.categories.luxury.ID, "rc_missing"),
			checkFn: ierr.IsNotFound,
		},
		{
			name:    "category without price",
			req:     s.request(s.testData.categories.unpriced.ID),
			checkFn: ierr.IsNotFound,
		},
		{
			name:    "inactive category",
			req:     s.request(s.testData.categories.inactive.ID),
			checkFn: ierr.IsNotFound,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.saga.Subscribe(s.GetContext(), tc.req)
			s.Error(err)
			s.True(tc.checkFn(err), err.Error())
		})
	}
	s.Equal(0, s.GetProvider().CreatedCount())
}

func (s *RankingSubscriptionSagaSuite) TestLocalWriteFailureCancelsProviderSubscription() {
	s.withResidence()
	s.GetStores().EntitlementRepo.UpsertErr = ierr.NewError("connection reset").Mark(ierr.ErrDatabase)

	_, err := s.saga.Subscribe(s.GetContext(), s.request(s.testData.categories.luxury.ID))
	s.Error(err)
	s.True(ierr.IsDatabase(err))

	provider := s.GetProvider()
	s.Equal(1, provider.CreatedCount())
	s.Len(provider.CanceledIDs(), 1)
	s.Equal(0, s.GetStores().TransactionRepo.Len())
}

func (s *RankingSubscriptionSagaSuite) TestLedgerFailureCancelsProviderSubscription() {
	s.withResidence()
	s.GetStores().TransactionRepo.UpsertErr = ierr.NewError("ledger unavailable").Mark(ierr.ErrDatabase)

	_, err := s.saga.Subscribe(s.GetContext(), s.request(s.testData.categories.luxury.ID))
	s.Error(err)
	s.Len(s.GetProvider().CanceledIDs(), 1)
}

func (s *RankingSubscriptionSagaSuite) TestFailedCompensationReturnsOriginalError() {
	s.withResidence()
	s.GetStores().EntitlementRepo.UpsertErr = ierr.NewError("connection reset").Mark(ierr.ErrDatabase)
	s.GetProvider().CancelSubscriptionErr = ierr.NewError("stripe unavailable").Mark(ierr.ErrHTTPClient)

	_, err := s.saga.Subscribe(s.GetContext(), s.request(s.testData.categories.luxury.ID))
	s.Error(err)
	s.True(ierr.IsDatabase(err))
	s.False(ierr.IsHTTPClient(err))
	s.Empty(s.GetProvider().CanceledIDs())
}

func (s *RankingSubscriptionSagaSuite) TestFailedCategoryKeepsSucceededOnes() {
	s.withResidence()
	s.GetProvider().CreateSubscriptionErr[testFamilyPrice] = ierr.NewError("card declined").Mark(ierr.ErrHTTPClient)

	_, err := s.saga.Subscribe(s.GetContext(), s.request(s.testData.categories.luxury.ID, s.testData.categories.family.ID))
	s.Error(err)
	s.True(ierr.IsHTTPClient(err))

	active, err := s.GetStores().EntitlementRepo.ListActiveRanking(s.GetContext(), s.testData.userID, testResidenceID)
	s.NoError(err)
	s.Require().Len(active, 1)
	s.Equal(s.testData.categories.luxury.ID, lo.FromPtr(active[0].RankingCategoryID))
	s.Empty(s.GetProvider().CanceledIDs())
}

func (s *RankingSubscriptionSagaSuite) TestSupersedesActiveSubscriptionOfSameCategory() {
	s.withResidence()
	luxury := s.testData.categories.luxury
	old := s.seedRecord(testResidenceID, luxury.ID, "sub_rank_old", types.SubscriptionStatusActive)

	resp, err := s.saga.Subscribe(s.GetContext(), s.request(luxury.ID))
	s.Require().NoError(err)

	got, err := s.GetStores().EntitlementRepo.Get(s.GetContext(), old.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, got.Status)

	records := s.recordsFor(resp.RankingSubscriptions[0].ProviderSubscriptionID)
	s.Require().Len(records, 1)
	s.Equal(types.SubscriptionStatusActive, records[0].Status)
}

func (s *RankingSubscriptionSagaSuite) TestResidenceEndingMidFlightCancelsProviderSubscription() {
	s.withResidence()
	ctx := s.GetContext()
	provider := s.GetProvider()
	var cancelErr error
	provider.AfterCreateSubscription = func(*stripe.Subscription) {
		_, cancelErr = s.GetStores().EntitlementRepo.MarkCanceled(ctx, "sub_residence")
	}

	_, err := s.saga.Subscribe(ctx, s.request(s.testData.categories.luxury.ID))
	s.Require().NoError(cancelErr)
	s.Error(err)
	s.True(ierr.IsPreconditionFailed(err))

	s.Equal(1, provider.CreatedCount())
	s.Len(provider.CanceledIDs(), 1)
	s.Empty(s.recordsFor(provider.CanceledIDs()[0]))
	s.Equal(0, s.GetStores().TransactionRepo.Len())
}
