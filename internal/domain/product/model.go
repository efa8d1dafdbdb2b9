package product

import (
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/shopspring/decimal"
)

// Product is a billing catalog entry. Residence-tier checkouts sell these.
type Product struct {
	ID                string                 `db:"id" json:"id"`
	Name              string                 `db:"name" json:"name"`
	Description       string                 `db:"description" json:"description"`
	FeatureKey        string                 `db:"feature_key" json:"feature_key"`
	Type              types.ProductType      `db:"type" json:"type"`
	SubscriptionType  types.SubscriptionType `db:"subscription_type" json:"subscription_type"`
	ProviderProductID string                 `db:"stripe_product_id" json:"stripe_product_id"`
	ProviderPriceID   string                 `db:"stripe_price_id" json:"stripe_price_id"`
	Amount            decimal.Decimal        `db:"amount" json:"amount"`
	Currency          string                 `db:"currency" json:"currency"`
	Interval          string                 `db:"interval" json:"interval"`
	Active            bool                   `db:"active" json:"active"`
	IsPremium         bool                   `db:"is_premium" json:"is_premium"`
	Metadata          types.Metadata         `db:"metadata" json:"metadata"`
	types.BaseModel
}

// IsFree reports whether the product is the zero-cost residence plan
func (p *Product) IsFree() bool {
	return p.Amount.IsZero() || p.FeatureKey == types.FreeResidencePlanFeatureKey
}

// IsPurchasable reports whether a checkout can be opened for the product
func (p *Product) IsPurchasable() bool {
	return p.Active && !p.IsFree() && p.ProviderPriceID != ""
}

// Reference returns the resolver view of the product
func (p *Product) Reference() *types.ProductReference {
	return types.NewResidenceProductReference(p.ID, p.ProviderPriceID, p.ProviderProductID)
}
