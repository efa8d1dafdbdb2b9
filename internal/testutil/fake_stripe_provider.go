package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	ierr "github.com/flexprice/residence-billing/internal/errors"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
)

// FakeStripeProvider is an in-memory stripe.Provider. It records every call
// and lets tests inject failures per operation.
type FakeStripeProvider struct {
	mu sync.Mutex

	subscriptions map[string]*stripe.Subscription
	invoices      map[string]*stripe.Invoice
	customers     map[string]string
	byIdempotency map[string]*stripe.Subscription
	seq           int

	CheckoutSessions   []*stripeIntegration.CheckoutSessionInput
	CreatedInputs      []*stripeIntegration.SubscriptionInput
	Canceled           []string
	AttachedMethods    []string
	GetSubscriptionIDs []string

	// Injected failures. CreateSubscriptionErr is keyed by price id.
	GetSubscriptionErr    error
	CreateSubscriptionErr map[string]error
	CancelSubscriptionErr error
	CheckoutSessionErr    error
	AttachErr             error

	// CreatedStatus is the status of subscriptions made by CreateSubscription
	CreatedStatus stripe.SubscriptionStatus
	// AmountDue is charged on the first invoice of created subscriptions
	AmountDue int64

	// AfterCreateSubscription runs once CreateSubscription has succeeded,
	// outside the provider lock
	AfterCreateSubscription func(sub *stripe.Subscription)
}

var _ stripeIntegration.Provider = (*FakeStripeProvider)(nil)

func NewFakeStripeProvider() *FakeStripeProvider {
	return &FakeStripeProvider{
		subscriptions:         make(map[string]*stripe.Subscription),
		invoices:              make(map[string]*stripe.Invoice),
		customers:             make(map[string]string),
		byIdempotency:         make(map[string]*stripe.Subscription),
		CreateSubscriptionErr: make(map[string]error),
		CreatedStatus:         stripe.SubscriptionStatusActive,
		AmountDue:             2900,
	}
}

// PutSubscription makes sub retrievable through GetSubscription
func (f *FakeStripeProvider) PutSubscription(sub *stripe.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[sub.ID] = sub
}

// PutInvoice makes inv retrievable through GetInvoice
func (f *FakeStripeProvider) PutInvoice(inv *stripe.Invoice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices[inv.ID] = inv
}

func (f *FakeStripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetSubscriptionIDs = append(f.GetSubscriptionIDs, subscriptionID)
	if f.GetSubscriptionErr != nil {
		return nil, f.GetSubscriptionErr
	}
	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, ierr.NewErrorf("subscription %s not found", subscriptionID).
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

func (f *FakeStripeProvider) GetInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, ierr.NewErrorf("invoice %s not found", invoiceID).
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (f *FakeStripeProvider) CreateCheckoutSession(ctx context.Context, input *stripeIntegration.CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CheckoutSessionErr != nil {
		return nil, f.CheckoutSessionErr
	}
	f.CheckoutSessions = append(f.CheckoutSessions, input)
	id := f.nextID("cs")
	return &stripe.CheckoutSession{
		ID:       id,
		URL:      "https://checkout.stripe.test/" + id,
		Metadata: input.Metadata,
	}, nil
}

// CreateSubscription returns the same subscription for a repeated
// idempotency key
func (f *FakeStripeProvider) CreateSubscription(ctx context.Context, input *stripeIntegration.SubscriptionInput) (*stripe.Subscription, error) {
	sub, err := f.createSubscription(input)
	if err == nil && f.AfterCreateSubscription != nil {
		f.AfterCreateSubscription(sub)
	}
	return sub, err
}

func (f *FakeStripeProvider) createSubscription(input *stripeIntegration.SubscriptionInput) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreatedInputs = append(f.CreatedInputs, input)
	if err := f.CreateSubscriptionErr[input.PriceID]; err != nil {
		return nil, err
	}
	if sub, ok := f.byIdempotency[input.IdempotencyKey]; ok && input.IdempotencyKey != "" {
		return sub, nil
	}

	subID := f.nextID("sub")
	inv := &stripe.Invoice{
		ID:         f.nextID("in"),
		Status:     stripe.InvoiceStatusPaid,
		AmountPaid: f.AmountDue,
		Currency:   stripe.CurrencyUSD,
		Parent: &stripe.InvoiceParent{
			SubscriptionDetails: &stripe.InvoiceParentSubscriptionDetails{
				Subscription: &stripe.Subscription{ID: subID},
				Metadata:     input.Metadata,
			},
		},
	}
	sub := NewStripeSubscription(subID, f.CreatedStatus, input.Metadata, input.PriceID)
	sub.LatestInvoice = inv

	f.subscriptions[subID] = sub
	f.invoices[inv.ID] = inv
	if input.IdempotencyKey != "" {
		f.byIdempotency[input.IdempotencyKey] = sub
	}
	return sub, nil
}

func (f *FakeStripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CancelSubscriptionErr != nil {
		return f.CancelSubscriptionErr
	}
	f.Canceled = append(f.Canceled, subscriptionID)
	if sub, ok := f.subscriptions[subscriptionID]; ok {
		sub.Status = stripe.SubscriptionStatusCanceled
	}
	return nil
}

func (f *FakeStripeProvider) GetOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.customers[userID]; ok {
		return id, nil
	}
	id := f.nextID("cus")
	f.customers[userID] = id
	return id, nil
}

func (f *FakeStripeProvider) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.AttachErr != nil {
		return f.AttachErr
	}
	f.AttachedMethods = append(f.AttachedMethods, paymentMethodID)
	return nil
}

// CanceledIDs returns the subscriptions canceled so far
func (f *FakeStripeProvider) CanceledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Canceled...)
}

// CustomerCount returns how many customers were created
func (f *FakeStripeProvider) CustomerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.customers)
}

// CreatedCount returns how many CreateSubscription calls were made
func (f *FakeStripeProvider) CreatedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.CreatedInputs)
}

func (f *FakeStripeProvider) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_fake_%d", prefix, f.seq)
}

// NewStripeSubscription builds a provider subscription with one item per
// price. Items renew thirty days from now.
func NewStripeSubscription(id string, status stripe.SubscriptionStatus, metadata map[string]string, priceIDs ...string) *stripe.Subscription {
	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second).Unix()
	return &stripe.Subscription{
		ID:       id,
		Status:   status,
		Metadata: lo.Assign(map[string]string{}, metadata),
		Items: &stripe.SubscriptionItemList{
			Data: lo.Map(priceIDs, func(priceID string, i int) *stripe.SubscriptionItem {
				return &stripe.SubscriptionItem{
					ID:               fmt.Sprintf("si_%s_%d", id, i),
					Price:            &stripe.Price{ID: priceID},
					CurrentPeriodEnd: periodEnd,
				}
			}),
		},
	}
}

// NewStripeInvoice builds a paid invoice raised for subscriptionID
func NewStripeInvoice(id, subscriptionID string, amountPaid int64, metadata map[string]string) *stripe.Invoice {
	return &stripe.Invoice{
		ID:               id,
		Status:           stripe.InvoiceStatusPaid,
		AmountPaid:       amountPaid,
		Currency:         stripe.CurrencyUSD,
		HostedInvoiceURL: "https://invoice.stripe.test/" + id,
		Parent: &stripe.InvoiceParent{
			SubscriptionDetails: &stripe.InvoiceParentSubscriptionDetails{
				Subscription: &stripe.Subscription{ID: subscriptionID},
				Metadata:     metadata,
			},
		},
	}
}
