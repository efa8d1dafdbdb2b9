package product

import (
	"context"

	"github.com/flexprice/residence-billing/internal/types"
)

// Filter narrows catalog listings. Nil fields are not applied.
type Filter struct {
	SubscriptionType *types.SubscriptionType
	Type             *types.ProductType
	Active           *bool
	IsPremium        *bool
}

type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	// GetByProviderPriceID matches the price id exactly regardless of active state
	GetByProviderPriceID(ctx context.Context, priceID string) (*Product, error)
	// GetActiveByFeatureKey returns the active product carrying the feature key
	GetActiveByFeatureKey(ctx context.Context, featureKey string) (*Product, error)
	// List returns products ordered by amount then creation time
	List(ctx context.Context, filter *Filter) ([]*Product, error)
}
