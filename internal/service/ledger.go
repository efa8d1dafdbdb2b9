package service

import (
	"context"

	"github.com/flexprice/residence-billing/internal/domain/transaction"
	"github.com/flexprice/residence-billing/internal/idempotency"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/notification"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/stripe/stripe-go/v82"
)

// ledger writes one financial transaction per provider invoice
type ledger struct {
	ServiceParams
	keys *idempotency.Generator
}

func newLedger(params ServiceParams) *ledger {
	return &ledger{
		ServiceParams: params,
		keys:          idempotency.NewGenerator(),
	}
}

// buildInvoiceTransaction maps a provider invoice onto a ledger entry
func (l *ledger) buildInvoiceTransaction(
	ctx context.Context,
	inv *stripe.Invoice,
	userID string,
	ref *types.ProductReference,
	providerSubscriptionID string,
) *transaction.Transaction {
	txn := &transaction.Transaction{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
		Reference:              types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_TRANSACTION),
		UserID:                 userID,
		ProviderInvoiceID:      inv.ID,
		ProviderSubscriptionID: providerSubscriptionID,
		Type:                   types.ProductTypeSubscription,
		Amount:                 stripeIntegration.AmountFromMinorUnits(inv.AmountPaid, inv.Currency),
		Currency:               string(inv.Currency),
		Status:                 types.TransactionStatus(inv.Status),
		HostedInvoiceURL:       inv.HostedInvoiceURL,
		InvoicePDFURL:          inv.InvoicePDF,
		IdempotencyKey:         l.keys.InvoiceTransactionKey(inv.ID),
		BaseModel:              types.GetDefaultBaseModel(ctx),
	}
	if ref != nil {
		txn.ProviderPriceID = ref.PriceID
		txn.ProviderProductID = ref.ProviderProductID
	}
	return txn
}

// recordInvoice upserts the ledger entry for inv. Redelivery of the same
// invoice overwrites the existing row instead of adding a second one.
func (l *ledger) recordInvoice(
	ctx context.Context,
	inv *stripe.Invoice,
	userID string,
	ref *types.ProductReference,
	providerSubscriptionID string,
) (*transaction.Transaction, error) {
	txn := l.buildInvoiceTransaction(ctx, inv, userID, ref, providerSubscriptionID)
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	saved, err := l.TransactionRepo.UpsertByInvoiceID(ctx, txn)
	if err != nil {
		return nil, err
	}

	l.Logger.WithContext(ctx).Infow("recorded invoice transaction",
		"transaction_id", saved.ID,
		"reference", saved.Reference,
		"invoice_id", saved.ProviderInvoiceID,
		"amount", saved.Amount.String(),
		"status", saved.Status,
	)
	return saved, nil
}

// recordInvoiceBestEffort records the ledger entry and publishes the
// invoice.paid notification. Failures are logged and swallowed so they
// never undo an entitlement write.
func (l *ledger) recordInvoiceBestEffort(
	ctx context.Context,
	inv *stripe.Invoice,
	scope types.Scope,
	ref *types.ProductReference,
	providerSubscriptionID string,
) {
	if inv == nil || inv.ID == "" {
		return
	}

	txn, err := l.recordInvoice(ctx, inv, scope.UserID, ref, providerSubscriptionID)
	if err != nil {
		l.Logger.WithContext(ctx).Errorw("failed to record invoice transaction",
			"error", err,
			"invoice_id", inv.ID,
			"provider_subscription_id", providerSubscriptionID,
		)
		return
	}

	if txn.Status != types.TransactionStatusPaid {
		return
	}

	l.notify(ctx, types.NotificationInvoicePaid, scope, inv.ID, &notification.InvoicePaidPayload{
		TransactionID:     txn.ID,
		Reference:         txn.Reference,
		ProviderInvoiceID: txn.ProviderInvoiceID,
		Amount:            txn.Amount,
		Currency:          txn.Currency,
		HostedInvoiceURL:  txn.HostedInvoiceURL,
		InvoicePDFURL:     txn.InvoicePDFURL,
	})
}

// notify publishes a notification and only logs failures
func (l *ledger) notify(ctx context.Context, name types.NotificationName, scope types.Scope, objectID string, payload any) {
	if l.NotificationPublisher == nil {
		return
	}
	if err := l.NotificationPublisher.Publish(ctx, name, scope.UserID, scope.ResidenceID, objectID, payload); err != nil {
		l.Logger.WithContext(ctx).Errorw("failed to publish notification",
			"error", err,
			"name", name,
			"object_id", objectID,
		)
	}
}
