package service

import (
	"context"
	"time"

	"github.com/flexprice/residence-billing/internal/api/dto"
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
)

// freePlanPeriodEnd is stored on free plan records, which never lapse
var freePlanPeriodEnd = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// FreePlanService grants the zero-cost residence plan. The plan never
// reaches the payment provider; its records carry the FREE_PLAN sentinel as
// provider subscription id so that a later paid checkout supersedes them.
type FreePlanService interface {
	AssignFreePlan(ctx context.Context, userID, residenceID string) (*dto.EntitlementResponse, error)
}

type freePlanService struct {
	ServiceParams
}

func NewFreePlanService(params ServiceParams) FreePlanService {
	return &freePlanService{
		ServiceParams: params,
	}
}

// AssignFreePlan is a no-op returning the current record when the residence
// already has an ACTIVE residence subscription, free or paid
func (s *freePlanService) AssignFreePlan(ctx context.Context, userID, residenceID string) (*dto.EntitlementResponse, error) {
	if userID == "" || residenceID == "" {
		return nil, ierr.NewError("user_id and residence_id are required").
			WithHint("A user and a residence are required to assign the free plan").
			Mark(ierr.ErrValidation)
	}

	freeProduct, err := s.ProductRepo.GetActiveByFeatureKey(ctx, s.Config.Billing.FreePlanFeatureKey)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Free residence plan is not configured").
				Mark(ierr.ErrSystem)
		}
		return nil, err
	}

	var result *entitlement.Record
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		active, err := s.EntitlementRepo.ListActiveResidence(ctx, userID, residenceID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			result = active[0]
			return nil
		}

		record := entitlement.NewRecord(
			types.NewScope(userID, residenceID, ""),
			freeProduct.ID,
			types.FreePlanSubscriptionID,
			"",
			types.SubscriptionStatusActive,
			freePlanPeriodEnd,
		)
		record.Metadata = types.Metadata{
			types.MetadataKeySource:           "free_plan",
			types.MetadataKeySubscriptionType: string(types.SubscriptionTypeResidence),
		}
		record.BaseModel = types.GetDefaultBaseModel(ctx)

		result, err = s.EntitlementRepo.Upsert(ctx, record)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("assigned free residence plan",
		"subscription_id", result.ID,
		"residence_id", residenceID,
		"provider_subscription_id", result.ProviderSubscriptionID,
	)
	return dto.NewEntitlementResponse(result), nil
}
