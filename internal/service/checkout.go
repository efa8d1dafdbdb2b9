package service

import (
	"context"
	"strings"

	"github.com/flexprice/residence-billing/internal/api/dto"
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	"github.com/flexprice/residence-billing/internal/domain/product"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

const (
	checkoutSuccessPath = "/billing/success?session_id={CHECKOUT_SESSION_ID}"
	checkoutCancelPath  = "/billing/cancel"
)

// CheckoutService opens hosted provider checkouts. Nothing is persisted
// locally; the records are written when the provider confirms payment.
type CheckoutService interface {
	CreateResidenceCheckout(ctx context.Context, req *dto.CreateResidenceCheckoutRequest) (*dto.CheckoutSessionResponse, error)
	CreateRankingCheckout(ctx context.Context, req *dto.CreateRankingCheckoutRequest) (*dto.CheckoutSessionResponse, error)
	GetResidenceSubscriptionStatus(ctx context.Context, userID, residenceID string) (*dto.SubscriptionStatusResponse, error)
	ListEntitlements(ctx context.Context, userID, residenceID string) (*dto.ListResponse[*dto.EntitlementResponse], error)
}

type checkoutService struct {
	ServiceParams
	validator EntitlementValidator
}

func NewCheckoutService(params ServiceParams, validator EntitlementValidator) CheckoutService {
	return &checkoutService{
		ServiceParams: params,
		validator:     validator,
	}
}

func (s *checkoutService) CreateResidenceCheckout(ctx context.Context, req *dto.CreateResidenceCheckoutRequest) (*dto.CheckoutSessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.ensureNoPaidResidence(ctx, req.UserID, req.ResidenceID); err != nil {
		return nil, err
	}

	p, err := s.residenceProduct(ctx)
	if err != nil {
		return nil, err
	}

	successURL, cancelURL, err := s.redirectURLs(req.SuccessURL, req.CancelURL)
	if err != nil {
		return nil, err
	}

	customerID, err := s.Provider.GetOrCreateCustomer(ctx, req.UserID, req.Email)
	if err != nil {
		return nil, err
	}

	session, err := s.Provider.CreateCheckoutSession(ctx, &stripeIntegration.CheckoutSessionInput{
		PriceID:    p.ProviderPriceID,
		CustomerID: customerID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			types.MetadataKeyUserID:           req.UserID,
			types.MetadataKeyResidenceID:      req.ResidenceID,
			types.MetadataKeySubscriptionType: string(types.SubscriptionTypeResidence),
			types.MetadataKeyProductID:        p.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("created residence checkout",
		"session_id", session.ID,
		"residence_id", req.ResidenceID,
		"product_id", p.ID,
	)

	return &dto.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func (s *checkoutService) CreateRankingCheckout(ctx context.Context, req *dto.CreateRankingCheckoutRequest) (*dto.CheckoutSessionResponse, error) {
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

	category, err := s.RankingCategoryRepo.Get(ctx, req.RankingCategoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsSellable() {
		return nil, ierr.NewError("ranking category is not available").
			WithHint("This ranking category cannot be subscribed to").
			WithReportableDetails(map[string]any{
				"ranking_category_id": req.RankingCategoryID,
			}).
			Mark(ierr.ErrNotFound)
	}

	subscribed, err := s.validator.HasActiveRankingSubscription(ctx, req.UserID, req.ResidenceID, category.ID)
	if err != nil {
		return nil, err
	}
	if subscribed {
		return nil, ierr.NewError("ranking category already subscribed").
			WithHint("User already has an active subscription for this ranking category").
			WithReportableDetails(map[string]any{
				"residence_id":        req.ResidenceID,
				"ranking_category_id": category.ID,
			}).
			Mark(ierr.ErrPreconditionFailed)
	}

	successURL, cancelURL, err := s.redirectURLs(req.SuccessURL, req.CancelURL)
	if err != nil {
		return nil, err
	}

	customerID, err := s.Provider.GetOrCreateCustomer(ctx, req.UserID, req.Email)
	if err != nil {
		return nil, err
	}

	session, err := s.Provider.CreateCheckoutSession(ctx, &stripeIntegration.CheckoutSessionInput{
		PriceID:    lo.FromPtr(category.ProviderPriceID),
		CustomerID: customerID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			types.MetadataKeyUserID:            req.UserID,
			types.MetadataKeyResidenceID:       req.ResidenceID,
			types.MetadataKeyRankingCategoryID: category.ID,
			types.MetadataKeySubscriptionType:  string(types.SubscriptionTypeRanking),
		},
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("created ranking checkout",
		"session_id", session.ID,
		"residence_id", req.ResidenceID,
		"ranking_category_id", category.ID,
	)

	return &dto.CheckoutSessionResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func (s *checkoutService) GetResidenceSubscriptionStatus(ctx context.Context, userID, residenceID string) (*dto.SubscriptionStatusResponse, error) {
	var residence, ranking []*entitlement.Record

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		records, err := s.EntitlementRepo.ListActiveResidence(ctx, userID, residenceID)
		residence = records
		return err
	})
	p.Go(func(ctx context.Context) error {
		records, err := s.EntitlementRepo.ListActiveRanking(ctx, userID, residenceID)
		ranking = records
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	return &dto.SubscriptionStatusResponse{
		HasResidenceSubscription:  len(residence) > 0,
		HasRankingSubscriptions:   len(ranking) > 0,
		TotalRankingSubscriptions: len(ranking),
	}, nil
}

func (s *checkoutService) ListEntitlements(ctx context.Context, userID, residenceID string) (*dto.ListResponse[*dto.EntitlementResponse], error) {
	records, err := s.EntitlementRepo.ListByUserAndResidence(ctx, userID, residenceID)
	if err != nil {
		return nil, err
	}
	return dto.NewListResponse(lo.Map(records, func(r *entitlement.Record, _ int) *dto.EntitlementResponse {
		return dto.NewEntitlementResponse(r)
	})), nil
}

// ensureNoPaidResidence rejects a second paid residence subscription. The
// free plan does not count; a paid checkout supersedes it.
func (s *checkoutService) ensureNoPaidResidence(ctx context.Context, userID, residenceID string) error {
	records, err := s.EntitlementRepo.ListActiveResidence(ctx, userID, residenceID)
	if err != nil {
		return err
	}

	paid := lo.Filter(records, func(r *entitlement.Record, _ int) bool {
		return r.ProviderSubscriptionID != types.FreePlanSubscriptionID
	})
	if len(paid) > 0 {
		return ierr.NewError("residence already subscribed").
			WithHint("User already has an active residence subscription for this residence").
			WithReportableDetails(map[string]any{
				"residence_id":    residenceID,
				"subscription_id": paid[0].ID,
			}).
			Mark(ierr.ErrPreconditionFailed)
	}
	return nil
}

// residenceProduct picks the cheapest active paid residence product
func (s *checkoutService) residenceProduct(ctx context.Context) (*product.Product, error) {
	products, err := s.ProductRepo.List(ctx, &product.Filter{
		SubscriptionType: lo.ToPtr(types.SubscriptionTypeResidence),
		Type:             lo.ToPtr(types.ProductTypeSubscription),
		Active:           lo.ToPtr(true),
	})
	if err != nil {
		return nil, err
	}

	p, ok := lo.Find(products, func(p *product.Product) bool {
		return p.IsPurchasable()
	})
	if !ok {
		return nil, ierr.NewError("no residence product available").
			WithHint("No residence subscription product is currently available").
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

// redirectURLs falls back to the configured frontend for missing URLs
func (s *checkoutService) redirectURLs(successURL, cancelURL string) (string, string, error) {
	base := strings.TrimRight(s.Config.Billing.FrontendURL, "/")
	if successURL == "" && base != "" {
		successURL = base + checkoutSuccessPath
	}
	if cancelURL == "" && base != "" {
		cancelURL = base + checkoutCancelPath
	}
	if successURL == "" || cancelURL == "" {
		return "", "", ierr.NewError("redirect urls are required").
			WithHint("success_url and cancel_url are required").
			Mark(ierr.ErrValidation)
	}
	return successURL, cancelURL, nil
}
