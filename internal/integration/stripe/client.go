package stripe

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// Provider is the subset of the payment provider the billing services use.
// Tests substitute an in-memory fake.
type Provider interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	GetInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error)
	CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*stripe.CheckoutSession, error)
	CreateSubscription(ctx context.Context, input *SubscriptionInput) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetOrCreateCustomer(ctx context.Context, userID, email string) (string, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
}

// CheckoutSessionInput describes a single-price subscription checkout
type CheckoutSessionInput struct {
	PriceID    string
	CustomerID string
	SuccessURL string
	CancelURL  string
	// Metadata is copied onto both the session and the subscription it creates
	Metadata map[string]string
}

// SubscriptionInput describes a direct, off-session subscription creation
type SubscriptionInput struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	Metadata        map[string]string
	IdempotencyKey  string
}

// Client implements Provider on top of the stripe-go v82 client
type Client struct {
	sc     *stripe.Client
	logger *logger.Logger
}

var _ Provider = (*Client)(nil)

// NewClient creates a new Stripe client from the configured secret key
func NewClient(cfg *config.Configuration, logger *logger.Logger) *Client {
	return &Client{
		sc:     stripe.NewClient(cfg.Stripe.SecretKey, nil),
		logger: logger,
	}
}

// NewProvider exposes the client through the Provider interface for fx
func NewProvider(c *Client) Provider {
	return c
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionRetrieveParams{}
	params.AddExpand("items.data.price")
	params.AddExpand("latest_invoice")

	sub, err := c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, params)
	if err != nil {
		return nil, c.wrap(err, "Failed to retrieve subscription from Stripe", "subscription_id", subscriptionID)
	}
	return sub, nil
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*stripe.Invoice, error) {
	inv, err := c.sc.V1Invoices.Retrieve(ctx, invoiceID, nil)
	if err != nil {
		return nil, c.wrap(err, "Failed to retrieve invoice from Stripe", "invoice_id", invoiceID)
	}
	return inv, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(input.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: input.Metadata,
		},
		Metadata: input.Metadata,
	}
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	}

	session, err := c.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, c.wrap(err, "Failed to create checkout session", "price_id", input.PriceID)
	}

	c.logger.Infow("created stripe checkout session",
		"session_id", session.ID,
		"price_id", input.PriceID,
	)
	return session, nil
}

func (c *Client) CreateSubscription(ctx context.Context, input *SubscriptionInput) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(input.CustomerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(input.PriceID)},
		},
		PaymentBehavior: stripe.String("error_if_incomplete"),
		Metadata:        input.Metadata,
	}
	if input.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(input.PaymentMethodID)
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}
	params.AddExpand("latest_invoice")

	sub, err := c.sc.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, c.wrap(err, "Failed to create subscription in Stripe", "price_id", input.PriceID)
	}

	c.logger.Infow("created stripe subscription",
		"subscription_id", sub.ID,
		"price_id", input.PriceID,
		"status", sub.Status,
	)
	return sub, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if _, err := c.sc.V1Subscriptions.Cancel(ctx, subscriptionID, &stripe.SubscriptionCancelParams{}); err != nil {
		return c.wrap(err, "Failed to cancel subscription in Stripe", "subscription_id", subscriptionID)
	}
	c.logger.Infow("canceled stripe subscription", "subscription_id", subscriptionID)
	return nil
}

// wrap converts a stripe error into the application taxonomy. Missing
// resources become NotFound, everything else is a provider failure.
func (c *Client) wrap(err error, hint string, key, value string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return ierr.WithError(err).
			WithHint(hint).
			WithReportableDetails(map[string]any{key: value}).
			Mark(ierr.ErrNotFound)
	}

	c.logger.Errorw("stripe request failed", key, value, "error", err)
	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(map[string]any{key: value}).
		Mark(ierr.ErrHTTPClient)
}
