package rankingcategory

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Category, error)
	// GetByProviderPriceID matches the stored price id exactly
	GetByProviderPriceID(ctx context.Context, priceID string) (*Category, error)
	// ListSellable returns active categories that carry a provider price, ordered by name
	ListSellable(ctx context.Context) ([]*Category, error)
}
