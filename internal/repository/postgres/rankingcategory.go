package postgres

import (
	"context"

	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/postgres"
)

type rankingCategoryRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewRankingCategoryRepository(db *postgres.DB, logger *logger.Logger) rankingcategory.Repository {
	return &rankingCategoryRepository{db: db, logger: logger}
}

const rankingCategoryColumns = `
	id, name, slug, description, stripe_price_id, active, amount, currency,
	created_at, updated_at`

func (r *rankingCategoryRepository) Get(ctx context.Context, id string) (*rankingcategory.Category, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *rankingCategoryRepository) GetByProviderPriceID(ctx context.Context, priceID string) (*rankingcategory.Category, error) {
	return r.getOne(ctx, `WHERE stripe_price_id = $1`, priceID)
}

func (r *rankingCategoryRepository) getOne(ctx context.Context, where string, args ...interface{}) (*rankingcategory.Category, error) {
	query := `SELECT ` + rankingCategoryColumns + ` FROM ranking_categories ` + where + ` LIMIT 1`

	var c rankingcategory.Category
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Ranking category not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get ranking category").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *rankingCategoryRepository) ListSellable(ctx context.Context) ([]*rankingcategory.Category, error) {
	query := `SELECT ` + rankingCategoryColumns + ` FROM ranking_categories
		WHERE active = TRUE AND stripe_price_id IS NOT NULL AND stripe_price_id <> ''
		ORDER BY name ASC`

	var categories []*rankingcategory.Category
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &categories, query); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list ranking categories").
			Mark(ierr.ErrDatabase)
	}
	return categories, nil
}
