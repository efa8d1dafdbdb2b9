package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/flexprice/residence-billing/internal/api/dto"
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/testutil"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/stretchr/testify/suite"
)

// laggingEntitlementStore hides active residence records for the first
// hiddenFor lookups, the way a confirmation still in flight would
type laggingEntitlementStore struct {
	*testutil.InMemoryEntitlementStore
	hiddenFor int32
	calls     atomic.Int32
	err       error
}

func (l *laggingEntitlementStore) ListActiveResidence(ctx context.Context, userID, residenceID string) ([]*entitlement.Record, error) {
	n := l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	if n <= l.hiddenFor {
		return nil, nil
	}
	return l.InMemoryEntitlementStore.ListActiveResidence(ctx, userID, residenceID)
}

type EntitlementValidatorSuite struct {
	billingServiceSuite
}

func TestEntitlementValidator(t *testing.T) {
	suite.Run(t, new(EntitlementValidatorSuite))
}

func (s *EntitlementValidatorSuite) TestValidateRankingApplication() {
	ctx := s.GetContext()
	userID := s.testData.userID

	testCases := []struct {
		name     string
		seed     func()
		canApply bool
	}{
		{
			name:     "no records",
			seed:     func() {},
			canApply: false,
		},
		{
			name: "past due residence",
			seed: func() {
				s.seedRecord(testResidenceID, "", "sub_past_due", types.SubscriptionStatusPastDue)
			},
			canApply: false,
		},
		{
			name: "active residence on another residence",
			seed: func() {
				s.seedRecord(testOtherResidenceID, "", "sub_other", types.SubscriptionStatusActive)
			},
			canApply: false,
		},
		{
			name: "active ranking only",
			seed: func() {
				s.seedRecord(testResidenceID, s.testData.categories.luxury.ID, "sub_rank", types.SubscriptionStatusActive)
			},
			canApply: false,
		},
		{
			name: "active residence",
			seed: func() {
				s.seedRecord(testResidenceID, "", "sub_active", types.SubscriptionStatusActive)
			},
			canApply: true,
		},
	}

	// cases accumulate records; only the last one adds an active residence
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			tc.seed()

			resp, err := s.validator.ValidateRankingApplication(ctx, userID, testResidenceID)
			s.Require().NoError(err)
			s.Equal(tc.canApply, resp.CanApply)

			records, err := s.GetStores().EntitlementRepo.ListActiveResidence(ctx, userID, testResidenceID)
			s.NoError(err)
			s.Equal(len(records) > 0, resp.CanApply)

			if tc.canApply {
				s.Empty(resp.Reason)
			} else {
				s.Equal(ReasonResidenceRequiredToApply, resp.Reason)
			}
		})
	}
}

func (s *EntitlementValidatorSuite) TestValidateCategoryApplication() {
	ctx := s.GetContext()
	userID := s.testData.userID
	luxury := s.testData.categories.luxury.ID

	resp, err := s.validator.ValidateCategoryApplication(ctx, userID, testResidenceID, luxury)
	s.Require().NoError(err)
	s.Equal(ReasonResidenceRequiredToApply, resp.Reason)
	s.False(resp.HasResidenceSubscription)
	s.False(resp.CanApply)

	s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)
	resp, err = s.validator.ValidateCategoryApplication(ctx, userID, testResidenceID, luxury)
	s.Require().NoError(err)
	s.True(resp.HasResidenceSubscription)
	s.False(resp.HasRankingSubscription)
	s.False(resp.CanApply)
	s.Equal(ReasonCategorySubscriptionRequired, resp.Reason)

	s.seedRecord(testResidenceID, luxury, "sub_rank", types.SubscriptionStatusActive)
	resp, err = s.validator.ValidateCategoryApplication(ctx, userID, testResidenceID, luxury)
	s.Require().NoError(err)
	s.Equal(&dto.CategoryApplicationResponse{
		HasResidenceSubscription: true,
		HasRankingSubscription:   true,
		CanApply:                 true,
	}, resp)

	// a ranking subscription is per category
	resp, err = s.validator.ValidateCategoryApplication(ctx, userID, testResidenceID, s.testData.categories.family.ID)
	s.Require().NoError(err)
	s.False(resp.CanApply)
}

func (s *EntitlementValidatorSuite) TestRequireActiveResidence() {
	ctx := s.GetContext()
	userID := s.testData.userID

	s.Run("visible after a re-check", func() {
		store := &laggingEntitlementStore{InMemoryEntitlementStore: s.GetStores().EntitlementRepo, hiddenFor: 1}
		params := s.params
		params.EntitlementRepo = store
		s.seedRecord(testResidenceID, "", "sub_residence", types.SubscriptionStatusActive)

		s.NoError(NewEntitlementValidator(params).RequireActiveResidence(ctx, userID, testResidenceID))
		s.Equal(int32(2), store.calls.Load())
	})

	s.Run("never visible", func() {
		store := &laggingEntitlementStore{InMemoryEntitlementStore: s.GetStores().EntitlementRepo, hiddenFor: 100}
		params := s.params
		params.EntitlementRepo = store

		err := NewEntitlementValidator(params).RequireActiveResidence(ctx, userID, testResidenceID)
		s.Error(err)
		s.True(ierr.IsPreconditionFailed(err))
		s.Equal(int32(params.RetryPolicy.MaxAttempts), store.calls.Load())
	})

	s.Run("store failure stops the wait", func() {
		store := &laggingEntitlementStore{
			InMemoryEntitlementStore: s.GetStores().EntitlementRepo,
			err:                      ierr.NewError("connection reset").Mark(ierr.ErrDatabase),
		}
		params := s.params
		params.EntitlementRepo = store

		err := NewEntitlementValidator(params).RequireActiveResidence(ctx, userID, testResidenceID)
		s.Error(err)
		s.True(ierr.IsDatabase(err))
		s.Equal(int32(1), store.calls.Load())
	})
}
