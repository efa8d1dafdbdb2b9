package stripe

import (
	"strings"
	"time"

	"github.com/flexprice/residence-billing/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// MapSubscriptionStatus converts a provider status into an entitlement status
func MapSubscriptionStatus(status stripe.SubscriptionStatus) types.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return types.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return types.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return types.SubscriptionStatusCanceled
	default:
		return types.SubscriptionStatusPending
	}
}

// InvoiceSubscriptionID returns the subscription an invoice was raised for, or ""
func InvoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv == nil || inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
		return ""
	}
	if sub := inv.Parent.SubscriptionDetails.Subscription; sub != nil {
		return sub.ID
	}
	return ""
}

// SubscriptionItems returns the subscription's items, never nil
func SubscriptionItems(sub *stripe.Subscription) []*stripe.SubscriptionItem {
	if sub == nil || sub.Items == nil {
		return nil
	}
	return lo.Filter(sub.Items.Data, func(item *stripe.SubscriptionItem, _ int) bool {
		return item != nil
	})
}

// ItemPriceID returns the price id of a subscription item, or ""
func ItemPriceID(item *stripe.SubscriptionItem) string {
	if item == nil || item.Price == nil {
		return ""
	}
	return item.Price.ID
}

// ItemPeriodEnd converts the item's current period end to UTC. Zero when unset.
func ItemPeriodEnd(item *stripe.SubscriptionItem) time.Time {
	if item == nil || item.CurrentPeriodEnd == 0 {
		return time.Time{}
	}
	return time.Unix(item.CurrentPeriodEnd, 0).UTC()
}

// InvoiceLinePriceIDs returns the distinct price ids billed on the invoice
func InvoiceLinePriceIDs(inv *stripe.Invoice) []string {
	if inv == nil || inv.Lines == nil {
		return nil
	}
	ids := lo.FilterMap(inv.Lines.Data, func(line *stripe.InvoiceLineItem, _ int) (string, bool) {
		if line == nil || line.Pricing == nil || line.Pricing.PriceDetails == nil {
			return "", false
		}
		return line.Pricing.PriceDetails.Price, line.Pricing.PriceDetails.Price != ""
	})
	return lo.Uniq(ids)
}

// zeroDecimalCurrencies are charged in whole units by the provider
var zeroDecimalCurrencies = []string{
	"bif", "clp", "djf", "gnf", "jpy", "kmf", "krw", "mga",
	"pyg", "rwf", "ugx", "vnd", "vuv", "xaf", "xof", "xpf",
}

// AmountFromMinorUnits converts a provider amount into major currency units
func AmountFromMinorUnits(amount int64, currency stripe.Currency) decimal.Decimal {
	if lo.Contains(zeroDecimalCurrencies, strings.ToLower(string(currency))) {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
