package service

import (
	"context"

	"github.com/flexprice/residence-billing/internal/cache"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
)

// ProductResolver classifies a provider price id as a residence product or a
// ranking category
type ProductResolver interface {
	// Resolve checks the residence catalog first and the ranking categories
	// second. A price known to neither returns an ErrNotFound-marked error.
	Resolve(ctx context.Context, priceID string) (*types.ProductReference, error)
}

type productResolver struct {
	ServiceParams
}

func NewProductResolver(params ServiceParams) ProductResolver {
	return &productResolver{
		ServiceParams: params,
	}
}

func (s *productResolver) Resolve(ctx context.Context, priceID string) (*types.ProductReference, error) {
	if priceID == "" {
		return nil, ierr.NewError("price id is empty").
			WithHint("A price id is required to resolve a product").
			Mark(ierr.ErrNotFound)
	}

	key := cache.GenerateKey(cache.PrefixProductReference, priceID)
	if cached, ok := s.Cache.Get(ctx, key); ok {
		if ref, ok := cached.(*types.ProductReference); ok {
			return ref, nil
		}
	}

	ref, err := s.lookup(ctx, priceID)
	if err != nil {
		return nil, err
	}

	s.Cache.Set(ctx, key, ref, 0)
	return ref, nil
}

func (s *productResolver) lookup(ctx context.Context, priceID string) (*types.ProductReference, error) {
	p, err := s.ProductRepo.GetByProviderPriceID(ctx, priceID)
	if err == nil {
		return p.Reference(), nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	category, err := s.RankingCategoryRepo.GetByProviderPriceID(ctx, priceID)
	if err == nil {
		return category.Reference(), nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	return nil, ierr.NewErrorf("no product or ranking category for price %s", priceID).
		WithHint("The price does not belong to any billing product").
		WithReportableDetails(map[string]any{
			"price_id": priceID,
		}).
		Mark(ierr.ErrNotFound)
}
