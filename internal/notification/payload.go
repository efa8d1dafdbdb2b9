package notification

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionActivatedPayload is sent when an entitlement becomes ACTIVE
type SubscriptionActivatedPayload struct {
	SubscriptionID         string    `json:"subscription_id"`
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	SubscriptionType       string    `json:"subscription_type"`
	ProductID              string    `json:"product_id"`
	RankingCategoryID      string    `json:"ranking_category_id,omitempty"`
	CurrentPeriodEnd       time.Time `json:"current_period_end"`
}

// InvoicePaidPayload is sent when a paid invoice is written to the ledger
type InvoicePaidPayload struct {
	TransactionID     string          `json:"transaction_id"`
	Reference         string          `json:"reference"`
	ProviderInvoiceID string          `json:"provider_invoice_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	HostedInvoiceURL  string          `json:"hosted_invoice_url,omitempty"`
	InvoicePDFURL     string          `json:"invoice_pdf_url,omitempty"`
}
