package dto

import (
	"github.com/flexprice/residence-billing/internal/domain/product"
	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/shopspring/decimal"
)

type ProductResponse struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	FeatureKey       string                 `json:"feature_key"`
	SubscriptionType types.SubscriptionType `json:"subscription_type"`
	Amount           decimal.Decimal        `json:"amount"`
	Currency         string                 `json:"currency"`
	Interval         string                 `json:"interval"`
	IsPremium        bool                   `json:"is_premium"`
	IsFree           bool                   `json:"is_free"`
}

func NewProductResponse(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		FeatureKey:       p.FeatureKey,
		SubscriptionType: p.SubscriptionType,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Interval:         p.Interval,
		IsPremium:        p.IsPremium,
		IsFree:           p.IsFree(),
	}
}

type RankingCategoryResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

func NewRankingCategoryResponse(c *rankingcategory.Category) *RankingCategoryResponse {
	return &RankingCategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Amount:      c.Amount,
		Currency:    c.Currency,
	}
}
