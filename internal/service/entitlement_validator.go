package service

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/flexprice/residence-billing/internal/api/dto"
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
)

const (
	// ReasonResidenceRequiredToApply is returned by the ranking application gate
	ReasonResidenceRequiredToApply = "Active residence subscription required to apply for ranking"
	// ReasonResidenceRequiredForRanking rejects a ranking record without a confirmed residence tier
	ReasonResidenceRequiredForRanking = "Active residence subscription required for ranking subscriptions"
	// ReasonCategorySubscriptionRequired gates applications in a category the residence is not subscribed to
	ReasonCategorySubscriptionRequired = "Active subscription for this ranking category required to apply"
)

var errResidenceNotVisible = errors.New("no active residence subscription yet")

// EntitlementValidator decides whether a user may hold ranking-tier entitlements
type EntitlementValidator interface {
	ValidateRankingApplication(ctx context.Context, userID, residenceID string) (*dto.CanApplyResponse, error)
	ValidateCategoryApplication(ctx context.Context, userID, residenceID, categoryID string) (*dto.CategoryApplicationResponse, error)
	HasActiveResidenceSubscription(ctx context.Context, userID, residenceID string) (bool, error)
	HasActiveRankingSubscription(ctx context.Context, userID, residenceID, categoryID string) (bool, error)

	// RequireActiveResidence re-checks for an ACTIVE residence-tier record
	// under the configured retry policy. The residence confirmation may still
	// be in flight when a ranking confirmation arrives. Store errors end the
	// wait immediately.
	RequireActiveResidence(ctx context.Context, userID, residenceID string) error
}

type entitlementValidator struct {
	ServiceParams
}

func NewEntitlementValidator(params ServiceParams) EntitlementValidator {
	return &entitlementValidator{
		ServiceParams: params,
	}
}

func (s *entitlementValidator) ValidateRankingApplication(ctx context.Context, userID, residenceID string) (*dto.CanApplyResponse, error) {
	ok, err := s.HasActiveResidenceSubscription(ctx, userID, residenceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &dto.CanApplyResponse{
			CanApply: false,
			Reason:   ReasonResidenceRequiredToApply,
		}, nil
	}
	return &dto.CanApplyResponse{CanApply: true}, nil
}

func (s *entitlementValidator) ValidateCategoryApplication(ctx context.Context, userID, residenceID, categoryID string) (*dto.CategoryApplicationResponse, error) {
	hasResidence, err := s.HasActiveResidenceSubscription(ctx, userID, residenceID)
	if err != nil {
		return nil, err
	}
	if !hasResidence {
		return &dto.CategoryApplicationResponse{
			CanApply: false,
			Reason:   ReasonResidenceRequiredToApply,
		}, nil
	}

	hasRanking, err := s.HasActiveRankingSubscription(ctx, userID, residenceID, categoryID)
	if err != nil {
		return nil, err
	}
	if !hasRanking {
		return &dto.CategoryApplicationResponse{
			HasResidenceSubscription: true,
			CanApply:                 false,
			Reason:                   ReasonCategorySubscriptionRequired,
		}, nil
	}

	return &dto.CategoryApplicationResponse{
		HasResidenceSubscription: true,
		HasRankingSubscription:   true,
		CanApply:                 true,
	}, nil
}

func (s *entitlementValidator) HasActiveResidenceSubscription(ctx context.Context, userID, residenceID string) (bool, error) {
	records, err := s.EntitlementRepo.ListActiveResidence(ctx, userID, residenceID)
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

func (s *entitlementValidator) HasActiveRankingSubscription(ctx context.Context, userID, residenceID, categoryID string) (bool, error) {
	if categoryID == "" {
		return false, nil
	}

	records, err := s.EntitlementRepo.ListActiveRanking(ctx, userID, residenceID)
	if err != nil {
		return false, err
	}
	return lo.ContainsBy(records, func(r *entitlement.Record) bool {
		return lo.FromPtr(r.RankingCategoryID) == categoryID
	}), nil
}

func (s *entitlementValidator) RequireActiveResidence(ctx context.Context, userID, residenceID string) error {
	policy := s.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = types.DefaultResidenceRecheckPolicy
	}

	attempts := 0
	var storeErr error
	operation := func() error {
		attempts++
		ok, err := s.HasActiveResidenceSubscription(ctx, userID, residenceID)
		if err != nil {
			storeErr = err
			return backoff.Permanent(err)
		}
		if !ok {
			return errResidenceNotVisible
		}
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Delay), policy.Retries()),
		ctx,
	)

	err := backoff.Retry(operation, b)
	if err == nil {
		return nil
	}
	if storeErr != nil {
		return storeErr
	}

	s.Logger.WithContext(ctx).Warnw("residence subscription not active after re-checks",
		"user_id", userID,
		"residence_id", residenceID,
		"attempts", attempts,
	)
	return ierr.WithError(err).
		WithHint(ReasonResidenceRequiredForRanking).
		WithReportableDetails(map[string]any{
			"residence_id": residenceID,
		}).
		Mark(ierr.ErrPreconditionFailed)
}
