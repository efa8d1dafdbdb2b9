package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/flexprice/residence-billing/internal/domain/product"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/postgres"
)

type productRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewProductRepository(db *postgres.DB, logger *logger.Logger) product.Repository {
	return &productRepository{db: db, logger: logger}
}

const productColumns = `
	id, name, description, feature_key, type, subscription_type,
	stripe_product_id, stripe_price_id, amount, currency, interval,
	active, is_premium, metadata, created_at, updated_at`

func (r *productRepository) Get(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *productRepository) GetByProviderPriceID(ctx context.Context, priceID string) (*product.Product, error) {
	return r.getOne(ctx, `WHERE stripe_price_id = $1`, priceID)
}

func (r *productRepository) GetActiveByFeatureKey(ctx context.Context, featureKey string) (*product.Product, error) {
	return r.getOne(ctx, `WHERE feature_key = $1 AND active = TRUE`, featureKey)
}

func (r *productRepository) getOne(ctx context.Context, where string, args ...interface{}) (*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM billing_products ` + where + ` ORDER BY created_at ASC LIMIT 1`

	var p product.Product
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Billing product not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get billing product").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *productRepository) List(ctx context.Context, filter *product.Filter) ([]*product.Product, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, cond+" = $"+strconv.Itoa(len(args)))
	}

	if filter != nil {
		if filter.SubscriptionType != nil {
			add("subscription_type", *filter.SubscriptionType)
		}
		if filter.Type != nil {
			add("type", *filter.Type)
		}
		if filter.Active != nil {
			add("active", *filter.Active)
		}
		if filter.IsPremium != nil {
			add("is_premium", *filter.IsPremium)
		}
	}

	query := `SELECT ` + productColumns + ` FROM billing_products`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY amount ASC, created_at ASC`

	var products []*product.Product
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &products, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing products").
			Mark(ierr.ErrDatabase)
	}
	return products, nil
}
