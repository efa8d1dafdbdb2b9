package types

import (
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the lifecycle state of an entitlement record.
// Status changes are unconditional overwrites so that provider events
// can be replayed in any order.
type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "PENDING"
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusPending,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":  s,
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionType tags the tier a checkout or record belongs to.
// It travels in provider metadata as subscriptionType.
type SubscriptionType string

const (
	SubscriptionTypeResidence SubscriptionType = "residence"
	SubscriptionTypeRanking   SubscriptionType = "ranking"
)

// ProductType mirrors the billing product type column
type ProductType string

const (
	ProductTypeSubscription ProductType = "SUBSCRIPTION"
	ProductTypeOneTime      ProductType = "ONE_TIME"
)

const (
	// FreePlanSubscriptionID is stored as the provider subscription id of
	// zero-cost residence plans that never reach the payment provider.
	FreePlanSubscriptionID = "FREE_PLAN"

	// FreeResidencePlanFeatureKey identifies the free residence product in the catalog
	FreeResidencePlanFeatureKey = "free_residence_plan"
)

// Metadata keys carried on provider checkout sessions and subscriptions
const (
	MetadataKeyUserID            = "userId"
	MetadataKeyResidenceID       = "residenceId"
	MetadataKeyRankingCategoryID = "rankingCategoryId"
	MetadataKeySubscriptionType  = "subscriptionType"
	MetadataKeyProductID         = "productId"
	MetadataKeyProviderPriceID   = "stripePriceId"
	MetadataKeySource            = "source"
)

// Scope identifies what an entitlement record governs.
// A nil RankingCategoryID means the residence tier.
type Scope struct {
	UserID            string
	ResidenceID       string
	RankingCategoryID *string
}

// NewScope builds a scope, treating an empty category id as the residence tier
func NewScope(userID, residenceID, rankingCategoryID string) Scope {
	scope := Scope{UserID: userID, ResidenceID: residenceID}
	if rankingCategoryID != "" {
		scope.RankingCategoryID = lo.ToPtr(rankingCategoryID)
	}
	return scope
}

// ScopeFromMetadata extracts a scope from provider metadata.
// ok is false when userId or residenceId is missing.
func ScopeFromMetadata(m map[string]string) (Scope, bool) {
	userID := m[MetadataKeyUserID]
	residenceID := m[MetadataKeyResidenceID]
	if userID == "" || residenceID == "" {
		return Scope{}, false
	}
	return NewScope(userID, residenceID, m[MetadataKeyRankingCategoryID]), true
}

func (s Scope) IsResidenceTier() bool {
	return s.RankingCategoryID == nil
}

func (s Scope) CategoryID() string {
	return lo.FromPtr(s.RankingCategoryID)
}

// Equal compares two scopes by value
func (s Scope) Equal(other Scope) bool {
	return s.UserID == other.UserID &&
		s.ResidenceID == other.ResidenceID &&
		s.CategoryID() == other.CategoryID()
}
