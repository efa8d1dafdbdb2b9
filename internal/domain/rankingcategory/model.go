package rankingcategory

import (
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/shopspring/decimal"
)

// Category is a ranking category a residence can be ranked in. A category is
// sellable once it carries a provider price id.
type Category struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Slug            string          `db:"slug" json:"slug"`
	Description     string          `db:"description" json:"description"`
	ProviderPriceID *string         `db:"stripe_price_id" json:"stripe_price_id,omitempty"`
	Active          bool            `db:"active" json:"active"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Currency        string          `db:"currency" json:"currency"`
	types.BaseModel
}

// HasPrice reports whether a provider price is configured
func (c *Category) HasPrice() bool {
	return c.ProviderPriceID != nil && *c.ProviderPriceID != ""
}

// IsSellable reports whether a ranking checkout can be opened for the category
func (c *Category) IsSellable() bool {
	return c.Active && c.HasPrice()
}

// Reference returns the resolver view of the category
func (c *Category) Reference() *types.ProductReference {
	if !c.HasPrice() {
		return types.NewRankingCategoryReference(c.ID, "")
	}
	return types.NewRankingCategoryReference(c.ID, *c.ProviderPriceID)
}
