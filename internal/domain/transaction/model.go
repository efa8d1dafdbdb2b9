package transaction

import (
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/shopspring/decimal"
)

// Transaction is a financial ledger entry for one provider invoice
type Transaction struct {
	ID                      string                  `db:"id" json:"id"`
	Reference               string                  `db:"reference" json:"reference"`
	UserID                  string                  `db:"user_id" json:"user_id"`
	ProviderInvoiceID       string                  `db:"provider_invoice_id" json:"provider_invoice_id"`
	ProviderPaymentIntentID string                  `db:"provider_payment_intent_id" json:"provider_payment_intent_id"`
	ProviderProductID       string                  `db:"provider_product_id" json:"provider_product_id"`
	ProviderPriceID         string                  `db:"provider_price_id" json:"provider_price_id"`
	ProviderSubscriptionID  string                  `db:"provider_subscription_id" json:"provider_subscription_id"`
	Type                    types.ProductType       `db:"type" json:"type"`
	Amount                  decimal.Decimal         `db:"amount" json:"amount"`
	Currency                string                  `db:"currency" json:"currency"`
	Status                  types.TransactionStatus `db:"status" json:"status"`
	HostedInvoiceURL        string                  `db:"hosted_invoice_url" json:"hosted_invoice_url"`
	InvoicePDFURL           string                  `db:"invoice_pdf_url" json:"invoice_pdf_url"`
	IdempotencyKey          string                  `db:"idempotency_key" json:"idempotency_key"`
	types.BaseModel
}

func (t *Transaction) Validate() error {
	if t.ProviderInvoiceID == "" {
		return ierr.NewError("provider_invoice_id is required").
			WithHint("Ledger entries are keyed by provider invoice").
			Mark(ierr.ErrValidation)
	}
	if t.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("Ledger entries must belong to a user").
			Mark(ierr.ErrValidation)
	}
	if t.Amount.IsNegative() {
		return ierr.NewError("amount must not be negative").
			WithHint("Refunds are not recorded in the ledger").
			WithReportableDetails(map[string]any{
				"amount": t.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
