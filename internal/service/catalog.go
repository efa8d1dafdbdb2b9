package service

import (
	"context"

	"github.com/flexprice/residence-billing/internal/api/dto"
	"github.com/flexprice/residence-billing/internal/domain/product"
	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
)

// CatalogService lists what can be bought. It is read-only; the catalog is
// maintained through migrations.
type CatalogService interface {
	ListResidenceProducts(ctx context.Context) (*dto.ListResponse[*dto.ProductResponse], error)
	ListRankingProducts(ctx context.Context) (*dto.ListResponse[*dto.ProductResponse], error)
	ListRankingCategories(ctx context.Context) (*dto.ListResponse[*dto.RankingCategoryResponse], error)
}

type catalogService struct {
	ServiceParams
}

func NewCatalogService(params ServiceParams) CatalogService {
	return &catalogService{
		ServiceParams: params,
	}
}

func (s *catalogService) ListResidenceProducts(ctx context.Context) (*dto.ListResponse[*dto.ProductResponse], error) {
	return s.listProducts(ctx, types.SubscriptionTypeResidence)
}

func (s *catalogService) ListRankingProducts(ctx context.Context) (*dto.ListResponse[*dto.ProductResponse], error) {
	return s.listProducts(ctx, types.SubscriptionTypeRanking)
}

func (s *catalogService) ListRankingCategories(ctx context.Context) (*dto.ListResponse[*dto.RankingCategoryResponse], error) {
	categories, err := s.RankingCategoryRepo.ListSellable(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewListResponse(lo.Map(categories, func(c *rankingcategory.Category, _ int) *dto.RankingCategoryResponse {
		return dto.NewRankingCategoryResponse(c)
	})), nil
}

func (s *catalogService) listProducts(ctx context.Context, subscriptionType types.SubscriptionType) (*dto.ListResponse[*dto.ProductResponse], error) {
	products, err := s.ProductRepo.List(ctx, &product.Filter{
		SubscriptionType: lo.ToPtr(subscriptionType),
		Active:           lo.ToPtr(true),
	})
	if err != nil {
		return nil, err
	}
	return dto.NewListResponse(lo.Map(products, func(p *product.Product, _ int) *dto.ProductResponse {
		return dto.NewProductResponse(p)
	})), nil
}
