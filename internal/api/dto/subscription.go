package dto

import (
	"time"

	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/flexprice/residence-billing/internal/validator"
	"github.com/samber/lo"
)

// CreateResidenceCheckoutRequest opens a provider checkout for the residence tier.
// The user comes from the authenticated caller.
type CreateResidenceCheckoutRequest struct {
	UserID      string `json:"-"`
	Email       string `json:"-"`
	ResidenceID string `json:"residence_id" validate:"required"`
	SuccessURL  string `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL   string `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

func (r *CreateResidenceCheckoutRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return requireUser(r.UserID)
}

// CreateRankingCheckoutRequest opens a provider checkout for one ranking category
type CreateRankingCheckoutRequest struct {
	UserID            string `json:"-"`
	Email             string `json:"-"`
	ResidenceID       string `json:"residence_id" validate:"required"`
	RankingCategoryID string `json:"ranking_category_id" validate:"required"`
	SuccessURL        string `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL         string `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

func (r *CreateRankingCheckoutRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return requireUser(r.UserID)
}

// CheckoutSessionResponse carries the provider session the client redirects to
type CheckoutSessionResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateDirectRankingSubscriptionRequest subscribes a residence to ranking
// categories off-session with an already collected payment method
type CreateDirectRankingSubscriptionRequest struct {
	UserID             string   `json:"-"`
	Email              string   `json:"-"`
	ResidenceID        string   `json:"residence_id" validate:"required"`
	RankingCategoryIDs []string `json:"ranking_category_ids" validate:"required,min=1,dive,required"`
	PaymentMethodID    string   `json:"payment_method_id" validate:"required"`
}

func (r *CreateDirectRankingSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := requireUser(r.UserID); err != nil {
		return err
	}
	if dupes := lo.FindDuplicates(r.RankingCategoryIDs); len(dupes) > 0 {
		return ierr.NewError("duplicate ranking categories").
			WithHint("Each ranking category can only be selected once").
			WithReportableDetails(map[string]any{
				"ranking_category_ids": dupes,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RankingSubscriptionResult is one category subscribed by the direct flow
type RankingSubscriptionResult struct {
	RankingCategoryID      string                   `json:"ranking_category_id"`
	SubscriptionID         string                   `json:"subscription_id"`
	ProviderSubscriptionID string                   `json:"provider_subscription_id"`
	Status                 types.SubscriptionStatus `json:"status"`
}

type DirectRankingSubscriptionResponse struct {
	UserID               string                       `json:"user_id"`
	ResidenceID          string                       `json:"residence_id"`
	RankingSubscriptions []*RankingSubscriptionResult `json:"ranking_subscriptions"`
}

// CanApplyResponse is the ranking application gate
type CanApplyResponse struct {
	CanApply bool   `json:"can_apply"`
	Reason   string `json:"reason,omitempty"`
}

// SubscriptionStatusResponse summarises a user's entitlements on one residence
type SubscriptionStatusResponse struct {
	HasResidenceSubscription  bool `json:"has_residence_subscription"`
	HasRankingSubscriptions   bool `json:"has_ranking_subscriptions"`
	TotalRankingSubscriptions int  `json:"total_ranking_subscriptions"`
}

// CategoryApplicationResponse gates a ranking application in one category
type CategoryApplicationResponse struct {
	HasResidenceSubscription bool   `json:"has_residence_subscription"`
	HasRankingSubscription   bool   `json:"has_ranking_subscription"`
	CanApply                 bool   `json:"can_apply"`
	Reason                   string `json:"reason,omitempty"`
}

// EntitlementResponse is the API view of an entitlement record
type EntitlementResponse struct {
	ID                     string                   `json:"id"`
	ResidenceID            string                   `json:"residence_id"`
	RankingCategoryID      *string                  `json:"ranking_category_id,omitempty"`
	ProductID              string                   `json:"product_id"`
	ProviderSubscriptionID string                   `json:"provider_subscription_id"`
	Status                 types.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd       time.Time                `json:"current_period_end"`
	CreatedAt              time.Time                `json:"created_at"`
}

func NewEntitlementResponse(r *entitlement.Record) *EntitlementResponse {
	return &EntitlementResponse{
		ID:                     r.ID,
		ResidenceID:            r.ResidenceID,
		RankingCategoryID:      r.RankingCategoryID,
		ProductID:              r.ProductID,
		ProviderSubscriptionID: r.ProviderSubscriptionID,
		Status:                 r.Status,
		CurrentPeriodEnd:       r.CurrentPeriodEnd,
		CreatedAt:              r.CreatedAt,
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return ierr.NewError("user_id is required").
			WithHint("An authenticated user is required").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}
