package entitlement

import (
	"time"

	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
)

// Record maps one provider subscription onto one internal scope. A nil
// RankingCategoryID is a residence-tier record, otherwise it is the ranking
// tier for that category. Records are never deleted, only transitioned.
type Record struct {
	ID                     string                   `db:"id" json:"id"`
	UserID                 string                   `db:"user_id" json:"user_id"`
	ResidenceID            string                   `db:"residence_id" json:"residence_id"`
	RankingCategoryID      *string                  `db:"ranking_category_id" json:"ranking_category_id,omitempty"`
	ProductID              string                   `db:"product_id" json:"product_id"`
	ProviderSubscriptionID string                   `db:"provider_subscription_id" json:"provider_subscription_id"`
	ProviderPriceID        string                   `db:"provider_price_id" json:"provider_price_id"`
	Status                 types.SubscriptionStatus `db:"status" json:"status"`
	CurrentPeriodEnd       time.Time                `db:"current_period_end" json:"current_period_end"`
	Metadata               types.Metadata           `db:"metadata" json:"metadata"`
	types.BaseModel
}

// Scope returns the (user, residence, category) tuple the record governs
func (r *Record) Scope() types.Scope {
	return types.Scope{
		UserID:            r.UserID,
		ResidenceID:       r.ResidenceID,
		RankingCategoryID: r.RankingCategoryID,
	}
}

func (r *Record) IsResidenceTier() bool {
	return r.RankingCategoryID == nil
}

func (r *Record) IsRankingTier() bool {
	return r.RankingCategoryID != nil
}

func (r *Record) IsActive() bool {
	return r.Status == types.SubscriptionStatusActive
}

// Validate checks the fields required for an upsert
func (r *Record) Validate() error {
	if r.UserID == "" || r.ResidenceID == "" {
		return ierr.NewError("user_id and residence_id are required").
			WithHint("An entitlement record needs a user and a residence").
			Mark(ierr.ErrValidation)
	}
	if r.RankingCategoryID != nil && *r.RankingCategoryID == "" {
		return ierr.NewError("ranking_category_id must not be empty when set").
			WithHint("Use no category for residence-tier records").
			Mark(ierr.ErrValidation)
	}
	if r.ProviderSubscriptionID == "" {
		return ierr.NewError("provider_subscription_id is required").
			WithHint("An entitlement record must reference a provider subscription").
			Mark(ierr.ErrValidation)
	}
	if r.ProductID == "" {
		return ierr.NewError("product_id is required").
			WithHint("An entitlement record must reference a product or ranking category").
			Mark(ierr.ErrValidation)
	}
	return r.Status.Validate()
}

// NewRecord builds a record with a fresh id for the given scope
func NewRecord(scope types.Scope, productID, providerSubscriptionID, providerPriceID string, status types.SubscriptionStatus, periodEnd time.Time) *Record {
	return &Record{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:                 scope.UserID,
		ResidenceID:            scope.ResidenceID,
		RankingCategoryID:      scope.RankingCategoryID,
		ProductID:              productID,
		ProviderSubscriptionID: providerSubscriptionID,
		ProviderPriceID:        providerPriceID,
		Status:                 status,
		CurrentPeriodEnd:       periodEnd,
		Metadata:               types.Metadata{},
	}
}
