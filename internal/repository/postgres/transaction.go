package postgres

import (
	"context"
	"time"

	"github.com/flexprice/residence-billing/internal/domain/transaction"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/postgres"
	"github.com/flexprice/residence-billing/internal/types"
)

type transactionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTransactionRepository(db *postgres.DB, logger *logger.Logger) transaction.Repository {
	return &transactionRepository{db: db, logger: logger}
}

const transactionColumns = `
	id, reference, user_id, provider_invoice_id, provider_payment_intent_id,
	provider_product_id, provider_price_id, provider_subscription_id, type,
	amount, currency, status, hosted_invoice_url, invoice_pdf_url,
	idempotency_key, created_at, updated_at`

func (r *transactionRepository) UpsertByInvoiceID(ctx context.Context, txn *transaction.Transaction) (*transaction.Transaction, error) {
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if txn.ID == "" {
		txn.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION)
	}
	if txn.Reference == "" {
		txn.Reference = types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_TRANSACTION)
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	query := `
		INSERT INTO billing_transactions (` + transactionColumns + `
		) VALUES (
			:id, :reference, :user_id, :provider_invoice_id, :provider_payment_intent_id,
			:provider_product_id, :provider_price_id, :provider_subscription_id, :type,
			:amount, :currency, :status, :hosted_invoice_url, :invoice_pdf_url,
			:idempotency_key, :created_at, :updated_at
		)
		ON CONFLICT (provider_invoice_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			provider_payment_intent_id = EXCLUDED.provider_payment_intent_id,
			provider_product_id = EXCLUDED.provider_product_id,
			provider_price_id = EXCLUDED.provider_price_id,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			type = EXCLUDED.type,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			hosted_invoice_url = EXCLUDED.hosted_invoice_url,
			invoice_pdf_url = EXCLUDED.invoice_pdf_url,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, txn); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to record transaction").
			WithReportableDetails(map[string]any{
				"provider_invoice_id": txn.ProviderInvoiceID,
			}).
			Mark(ierr.ErrDatabase)
	}

	return r.GetByInvoiceID(ctx, txn.ProviderInvoiceID)
}

func (r *transactionRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM billing_transactions WHERE provider_invoice_id = $1`

	var txn transaction.Transaction
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &txn, query, invoiceID); err != nil {
		if postgres.IsNoRows(err) {
			return nil, ierr.WithError(err).
				WithHintf("Transaction for invoice %s not found", invoiceID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get transaction").
			Mark(ierr.ErrDatabase)
	}
	return &txn, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM billing_transactions WHERE user_id = $1 ORDER BY created_at DESC`

	var txns []*transaction.Transaction
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &txns, query, userID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list transactions").
			Mark(ierr.ErrDatabase)
	}
	return txns, nil
}
