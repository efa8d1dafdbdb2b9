package stripe

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestMapSubscriptionStatus(t *testing.T) {
	tests := []struct {
		in   stripe.SubscriptionStatus
		want types.SubscriptionStatus
	}{
		{stripe.SubscriptionStatusActive, types.SubscriptionStatusActive},
		{stripe.SubscriptionStatusTrialing, types.SubscriptionStatusActive},
		{stripe.SubscriptionStatusPastDue, types.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusUnpaid, types.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusCanceled, types.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, types.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncomplete, types.SubscriptionStatusPending},
		{stripe.SubscriptionStatusPaused, types.SubscriptionStatusPending},
		{"", types.SubscriptionStatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, MapSubscriptionStatus(tt.in))
		})
	}
}

func TestInvoiceSubscriptionID(t *testing.T) {
	assert.Empty(t, InvoiceSubscriptionID(nil))
	assert.Empty(t, InvoiceSubscriptionID(&stripe.Invoice{ID: "in_1"}))
	assert.Empty(t, InvoiceSubscriptionID(&stripe.Invoice{
		Parent: &stripe.InvoiceParent{SubscriptionDetails: &stripe.InvoiceParentSubscriptionDetails{}},
	}))
	assert.Equal(t, "sub_1", InvoiceSubscriptionID(&stripe.Invoice{
		Parent: &stripe.InvoiceParent{SubscriptionDetails: &stripe.InvoiceParentSubscriptionDetails{
			Subscription: &stripe.Subscription{ID: "sub_1"},
		}},
	}))
}

func TestSubscriptionItems(t *testing.T) {
	assert.Empty(t, SubscriptionItems(nil))
	assert.Empty(t, SubscriptionItems(&stripe.Subscription{}))

	end := time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC)
	sub := &stripe.Subscription{Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
		{Price: &stripe.Price{ID: "price_a"}, CurrentPeriodEnd: end.Unix()},
		nil,
		{},
	}}}

	items := SubscriptionItems(sub)
	require.Len(t, items, 2)
	assert.Equal(t, "price_a", ItemPriceID(items[0]))
	assert.Equal(t, end, ItemPeriodEnd(items[0]))
	assert.Empty(t, ItemPriceID(items[1]))
	assert.True(t, ItemPeriodEnd(items[1]).IsZero())
}

func TestInvoiceLinePriceIDs(t *testing.T) {
	assert.Empty(t, InvoiceLinePriceIDs(nil))
	assert.Empty(t, InvoiceLinePriceIDs(&stripe.Invoice{ID: "in_1"}))

	line := func(priceID string) *stripe.InvoiceLineItem {
		return &stripe.InvoiceLineItem{Pricing: &stripe.InvoiceLineItemPricing{
			PriceDetails: &stripe.InvoiceLineItemPricingPriceDetails{Price: priceID},
		}}
	}
	inv := &stripe.Invoice{Lines: &stripe.InvoiceLineItemList{Data: []*stripe.InvoiceLineItem{
		line("price_a"),
		nil,
		{},
		line(""),
		line("price_b"),
		line("price_a"),
	}}}

	assert.Equal(t, []string{"price_a", "price_b"}, InvoiceLinePriceIDs(inv))
}

func TestAmountFromMinorUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("29").Equal(AmountFromMinorUnits(2900, stripe.CurrencyUSD)))
	assert.True(t, decimal.RequireFromString("0.99").Equal(AmountFromMinorUnits(99, "usd")))
	assert.True(t, decimal.NewFromInt(500).Equal(AmountFromMinorUnits(500, "JPY")))
	assert.True(t, decimal.Zero.Equal(AmountFromMinorUnits(0, "eur")))
}

func TestWebhookVerifier(t *testing.T) {
	const secret = "whsec_test"
	cfg := &config.Configuration{Stripe: config.StripeConfig{WebhookSecret: secret}}
	verifier := NewWebhookVerifier(cfg, logger.NewNoopLogger())

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        string(EventInvoicePaid),
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{"id": "in_1", "object": "invoice", "amount_paid": 2900},
		},
	})
	require.NoError(t, err)

	t.Run("valid signature", func(t *testing.T) {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: secret})

		event, err := verifier.ConstructEvent(signed.Payload, signed.Header)
		require.NoError(t, err)
		assert.Equal(t, EventInvoicePaid, event.Type)

		inv, err := DecodeEventObject[stripe.Invoice](event)
		require.NoError(t, err)
		assert.Equal(t, "in_1", inv.ID)
		assert.Equal(t, int64(2900), inv.AmountPaid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})

		_, err := verifier.ConstructEvent(signed.Payload, signed.Header)
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := verifier.ConstructEvent(payload, "")
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("event without data", func(t *testing.T) {
		_, err := DecodeEventObject[stripe.Invoice](&stripe.Event{ID: "evt_2"})
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}
