package service

import (
	"context"
	"time"

	"github.com/flexprice/residence-billing/internal/api/dto"
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/idempotency"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/notification"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"github.com/stripe/stripe-go/v82"
)

// RankingSubscriptionSaga subscribes a residence to ranking categories
// directly with a saved payment method. Each category is its own saga: the
// provider subscription is created first and canceled again when the local
// write fails.
type RankingSubscriptionSaga interface {
	Subscribe(ctx context.Context, req *dto.CreateDirectRankingSubscriptionRequest) (*dto.DirectRankingSubscriptionResponse, error)
}

type rankingSubscriptionSaga struct {
	ServiceParams
	validator EntitlementValidator
	ledger    *ledger
	keys      *idempotency.Generator
}

func NewRankingSubscriptionSaga(params ServiceParams, validator EntitlementValidator) RankingSubscriptionSaga {
	return &rankingSubscriptionSaga{
		ServiceParams: params,
		validator:     validator,
		ledger:        newLedger(params),
		keys:          idempotency.NewGenerator(),
	}
}

// Subscribe validates everything it can before the first provider call. A
// failed category does not roll back categories that already succeeded.
func (s *rankingSubscriptionSaga) Subscribe(ctx context.Context, req *dto.CreateDirectRankingSubscriptionRequest) (*dto.DirectRankingSubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	gate, err := s.validator.ValidateRankingApplication(ctx, req.UserID, req.ResidenceID)
	if err != nil {
		return nil, err
	}
	if !gate.CanApply {
		return nil, ierr.NewError("residence subscription required").
			WithHint(gate.Reason).
			WithReportableDetails(map[string]any{
				"residence_id": req.ResidenceID,
			}).
			Mark(ierr.ErrPreconditionFailed)
	}

	categories := make([]*rankingcategory.Category, 0, len(req.RankingCategoryIDs))
	for _, id := range req.RankingCategoryIDs {
		category, err := s.RankingCategoryRepo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !category.IsSellable() {
			return nil, ierr.NewError("ranking category is not available").
				WithHint("This ranking category cannot be subscribed to").
				WithReportableDetails(map[string]any{
					"ranking_category_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		categories = append(categories, category)
	}

	customerID, err := s.Provider.GetOrCreateCustomer(ctx, req.UserID, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.Provider.AttachPaymentMethod(ctx, customerID, req.PaymentMethodID); err != nil {
		return nil, err
	}

	requestID := lo.CoalesceOrEmpty(types.GetRequestID(ctx), types.GenerateUUID())

	p := pool.NewWithResults[*dto.RankingSubscriptionResult]().
		WithContext(ctx).
		WithFirstError()
	for _, category := range categories {
		p.Go(func(ctx context.Context) (*dto.RankingSubscriptionResult, error) {
			return s.subscribeCategory(ctx, req, customerID, requestID, category)
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	return &dto.DirectRankingSubscriptionResponse{
		UserID:               req.UserID,
		ResidenceID:          req.ResidenceID,
		RankingSubscriptions: results,
	}, nil
}

func (s *rankingSubscriptionSaga) subscribeCategory(
	ctx context.Context,
	req *dto.CreateDirectRankingSubscriptionRequest,
	customerID string,
	requestID string,
	category *rankingcategory.Category,
) (*dto.RankingSubscriptionResult, error) {
	log := s.Logger.WithContext(ctx)
	scope := types.NewScope(req.UserID, req.ResidenceID, category.ID)
	ref := category.Reference()

	sub, err := s.Provider.CreateSubscription(ctx, &stripeIntegration.SubscriptionInput{
		CustomerID:      customerID,
		PriceID:         ref.PriceID,
		PaymentMethodID: req.PaymentMethodID,
		Metadata: map[string]string{
			types.MetadataKeyUserID:            req.UserID,
			types.MetadataKeyResidenceID:       req.ResidenceID,
			types.MetadataKeyRankingCategoryID: category.ID,
			types.MetadataKeySubscriptionType:  string(types.SubscriptionTypeRanking),
		},
		IdempotencyKey: s.keys.DirectSubscriptionKey(requestID, req.UserID, req.ResidenceID, category.ID),
	})
	if err != nil {
		return nil, err
	}

	var record *entitlement.Record
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// the residence subscription may have ended while the provider call was in flight
		if stripeIntegration.MapSubscriptionStatus(sub.Status) == types.SubscriptionStatusActive {
			if err := s.validator.RequireActiveResidence(ctx, req.UserID, req.ResidenceID); err != nil {
				return err
			}
		}

		record, err = s.recordSubscription(ctx, scope, ref, sub)
		if err != nil {
			return err
		}
		if sub.LatestInvoice == nil || sub.LatestInvoice.ID == "" {
			return nil
		}
		_, err = s.ledger.recordInvoice(ctx, sub.LatestInvoice, req.UserID, ref, sub.ID)
		return err
	})
	if err != nil {
		s.compensate(ctx, sub.ID, scope, err)
		return nil, err
	}

	log.Infow("created direct ranking subscription",
		"subscription_id", record.ID,
		"provider_subscription_id", sub.ID,
		"ranking_category_id", category.ID,
		"status", record.Status,
	)

	if record.IsActive() {
		s.ledger.notify(ctx, types.NotificationSubscriptionActivated, scope, sub.ID+":"+record.ProductID,
			&notification.SubscriptionActivatedPayload{
				SubscriptionID:         record.ID,
				ProviderSubscriptionID: sub.ID,
				SubscriptionType:       string(types.SubscriptionTypeRanking),
				ProductID:              record.ProductID,
				RankingCategoryID:      category.ID,
				CurrentPeriodEnd:       record.CurrentPeriodEnd,
			},
		)
	}

	return &dto.RankingSubscriptionResult{
		RankingCategoryID:      category.ID,
		SubscriptionID:         record.ID,
		ProviderSubscriptionID: sub.ID,
		Status:                 record.Status,
	}, nil
}

func (s *rankingSubscriptionSaga) recordSubscription(
	ctx context.Context,
	scope types.Scope,
	ref *types.ProductReference,
	sub *stripe.Subscription,
) (*entitlement.Record, error) {
	var periodEnd time.Time
	if items := stripeIntegration.SubscriptionItems(sub); len(items) > 0 {
		periodEnd = stripeIntegration.ItemPeriodEnd(items[0])
	}

	record := entitlement.NewRecord(
		scope,
		ref.EntitlementProductID(),
		sub.ID,
		ref.PriceID,
		stripeIntegration.MapSubscriptionStatus(sub.Status),
		periodEnd,
	)
	record.Metadata = types.Metadata{
		types.MetadataKeySource:           "direct",
		types.MetadataKeySubscriptionType: string(types.SubscriptionTypeRanking),
		types.MetadataKeyProviderPriceID:  ref.PriceID,
	}
	record.BaseModel = types.GetDefaultBaseModel(ctx)

	if err := record.Validate(); err != nil {
		return nil, err
	}

	saved, err := s.EntitlementRepo.Upsert(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := supersedeInScope(ctx, s.EntitlementRepo, s.Logger, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// compensate cancels the provider subscription after a failed local write.
// A failed cancellation leaves a charged subscription without a record, so it
// is reported for manual cleanup. The original error is what the caller sees.
func (s *rankingSubscriptionSaga) compensate(ctx context.Context, providerSubscriptionID string, scope types.Scope, cause error) {
	log := s.Logger.WithContext(ctx)
	log.Warnw("local write failed, canceling provider subscription",
		"error", cause,
		"provider_subscription_id", providerSubscriptionID,
	)

	if err := s.Provider.CancelSubscription(ctx, providerSubscriptionID); err != nil {
		log.Errorw("failed to cancel provider subscription after local write failure",
			"error", err,
			"cause", cause,
			"provider_subscription_id", providerSubscriptionID,
			"user_id", scope.UserID,
			"residence_id", scope.ResidenceID,
			"ranking_category_id", scope.CategoryID(),
		)
		s.Sentry.CaptureExceptionWithTags(err, map[string]string{
			"saga":                     "direct_ranking_subscription",
			"provider_subscription_id": providerSubscriptionID,
			"user_id":                  scope.UserID,
			"residence_id":             scope.ResidenceID,
			"ranking_category_id":      scope.CategoryID(),
		})
	}
}
