package repository

import (
	"github.com/flexprice/residence-billing/internal/domain/entitlement"
	"github.com/flexprice/residence-billing/internal/domain/product"
	"github.com/flexprice/residence-billing/internal/domain/rankingcategory"
	"github.com/flexprice/residence-billing/internal/domain/transaction"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/postgres"
	postgresRepo "github.com/flexprice/residence-billing/internal/repository/postgres"
	"go.uber.org/fx"
)

// Module provides every repository backed by postgres
func Module() fx.Option {
	return fx.Provide(
		NewEntitlementRepository,
		NewProductRepository,
		NewRankingCategoryRepository,
		NewTransactionRepository,
	)
}

func NewEntitlementRepository(db *postgres.DB, logger *logger.Logger) entitlement.Repository {
	return postgresRepo.NewEntitlementRepository(db, logger)
}

func NewProductRepository(db *postgres.DB, logger *logger.Logger) product.Repository {
	return postgresRepo.NewProductRepository(db, logger)
}

func NewRankingCategoryRepository(db *postgres.DB, logger *logger.Logger) rankingcategory.Repository {
	return postgresRepo.NewRankingCategoryRepository(db, logger)
}

func NewTransactionRepository(db *postgres.DB, logger *logger.Logger) transaction.Repository {
	return postgresRepo.NewTransactionRepository(db, logger)
}
