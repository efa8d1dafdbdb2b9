package testutil

import (
	"context"

	"github.com/flexprice/residence-billing/internal/domain/product"
	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	ierr "github.com/flexprice/residence-billing/internal/errors"
)

// InMemoryProductStore implements product.Repository
type InMemoryProductStore struct {
	*InMemoryStore[*product.Product]
}

var _ product.Repository = (*InMemoryProductStore)(nil)

func NewInMemoryProductStore() *InMemoryProductStore {
	return &InMemoryProductStore{
		InMemoryStore: NewInMemoryStore[*product.Product](),
	}
}

func (s *InMemoryProductStore) GetByProviderPriceID(ctx context.Context, priceID string) (*product.Product, error) {
	return s.first(ctx, func(p *product.Product) bool {
		return p.ProviderPriceID == priceID
	})
}

func (s *InMemoryProductStore) GetActiveByFeatureKey(ctx context.Context, featureKey string) (*product.Product, error) {
	return s.first(ctx, func(p *product.Product) bool {
		return p.Active && p.FeatureKey == featureKey
	})
}

func (s *InMemoryProductStore) List(ctx context.Context, filter *product.Filter) ([]*product.Product, error) {
	return s.InMemoryStore.List(ctx, func(_ context.Context, p *product.Product) bool {
		if filter == nil {
			return true
		}
		if filter.SubscriptionType != nil && p.SubscriptionType != *filter.SubscriptionType {
			return false
		}
		if filter.Type != nil && p.Type != *filter.Type {
			return false
		}
		if filter.Active != nil && p.Active != *filter.Active {
			return false
		}
		if filter.IsPremium != nil && p.IsPremium != *filter.IsPremium {
			return false
		}
		return true
	}, func(i, j *product.Product) bool {
		if !i.Amount.Equal(j.Amount) {
			return i.Amount.LessThan(j.Amount)
		}
		return i.CreatedAt.Before(j.CreatedAt)
	})
}

func (s *InMemoryProductStore) first(ctx context.Context, match func(*product.Product) bool) (*product.Product, error) {
	products, err := s.InMemoryStore.List(ctx, func(_ context.Context, p *product.Product) bool {
		return match(p)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ierr.NewError("product not found").
			Mark(ierr.ErrNotFound)
	}
	return products[0], nil
}

// InMemoryRankingCategoryStore implements rankingcategory.Repository
type InMemoryRankingCategoryStore struct {
	*InMemoryStore[*rankingcategory.Category]
}

var _ rankingcategory.Repository = (*InMemoryRankingCategoryStore)(nil)

func NewInMemoryRankingCategoryStore() *InMemoryRankingCategoryStore {
	return &InMemoryRankingCategoryStore{
		InMemoryStore: NewInMemoryStore[*rankingcategory.Category](),
	}
}

func (s *InMemoryRankingCategoryStore) GetByProviderPriceID(ctx context.Context, priceID string) (*rankingcategory.Category, error) {
	categories, err := s.List(ctx, func(_ context.Context, c *rankingcategory.Category) bool {
		return c.HasPrice() && *c.ProviderPriceID == priceID
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, ierr.NewError("ranking category not found").
			Mark(ierr.ErrNotFound)
	}
	return categories[0], nil
}

func (s *InMemoryRankingCategoryStore) ListSellable(ctx context.Context) ([]*rankingcategory.Category, error) {
	return s.List(ctx, func(_ context.Context, c *rankingcategory.Category) bool {
		return c.IsSellable()
	}, func(i, j *rankingcategory.Category) bool {
		return i.Name < j.Name
	})
}
