package types

import "github.com/samber/lo"

// ProductKind discriminates a ProductReference
type ProductKind string

const (
	ProductKindResidenceProduct ProductKind = "RESIDENCE_PRODUCT"
	ProductKindRankingCategory  ProductKind = "RANKING_CATEGORY"
)

// ProductReference is what a provider price id resolves to: either a
// residence-tier billing product or a ranking category. Exactly one of
// ProductID and CategoryID is set, matching Kind.
type ProductReference struct {
	Kind       ProductKind `json:"kind"`
	ProductID  string      `json:"product_id,omitempty"`
	CategoryID string      `json:"category_id,omitempty"`
	PriceID    string      `json:"price_id"`

	// ProviderProductID is the provider's product id when known, used on ledger entries
	ProviderProductID string `json:"provider_product_id,omitempty"`
}

func NewResidenceProductReference(productID, priceID, providerProductID string) *ProductReference {
	return &ProductReference{
		Kind:              ProductKindResidenceProduct,
		ProductID:         productID,
		PriceID:           priceID,
		ProviderProductID: providerProductID,
	}
}

func NewRankingCategoryReference(categoryID, priceID string) *ProductReference {
	return &ProductReference{
		Kind:       ProductKindRankingCategory,
		CategoryID: categoryID,
		PriceID:    priceID,
	}
}

func (r *ProductReference) IsResidenceProduct() bool {
	return r.Kind == ProductKindResidenceProduct
}

func (r *ProductReference) IsRankingCategory() bool {
	return r.Kind == ProductKindRankingCategory
}

// EntitlementProductID is the value stored in the record's product_id column
func (r *ProductReference) EntitlementProductID() string {
	if r.IsRankingCategory() {
		return r.CategoryID
	}
	return r.ProductID
}

// ScopeCategoryID is the ranking category the reference implies for a record scope
func (r *ProductReference) ScopeCategoryID() *string {
	if r.IsRankingCategory() {
		return lo.ToPtr(r.CategoryID)
	}
	return nil
}

// SubscriptionType maps the reference kind to its tier
func (r *ProductReference) SubscriptionType() SubscriptionType {
	if r.IsRankingCategory() {
		return SubscriptionTypeRanking
	}
	return SubscriptionTypeResidence
}
