package stripe

import (
	"context"
	"fmt"

	"github.com/flexprice/residence-billing/internal/types"
	"github.com/stripe/stripe-go/v82"
)

// GetOrCreateCustomer finds the provider customer tagged with the user id,
// creating one when none exists
func (c *Client) GetOrCreateCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerSearchParams{}
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", types.MetadataKeyUserID, userID)
	params.Limit = stripe.Int64(1)

	for customer, err := range c.sc.V1Customers.Search(ctx, params) {
		if err != nil {
			return "", c.wrap(err, "Failed to search Stripe customers", "user_id", userID)
		}
		return customer.ID, nil
	}

	createParams := &stripe.CustomerCreateParams{
		Metadata: map[string]string{
			types.MetadataKeyUserID: userID,
		},
	}
	if email != "" {
		createParams.Email = stripe.String(email)
	}

	customer, err := c.sc.V1Customers.Create(ctx, createParams)
	if err != nil {
		return "", c.wrap(err, "Failed to create Stripe customer", "user_id", userID)
	}

	c.logger.Infow("created stripe customer",
		"user_id", userID,
		"customer_id", customer.ID,
	)
	return customer.ID, nil
}

// AttachPaymentMethod attaches the payment method to the customer. A method
// already attached to the same customer is accepted.
func (c *Client) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	pm, err := c.sc.V1PaymentMethods.Retrieve(ctx, paymentMethodID, nil)
	if err != nil {
		return c.wrap(err, "Failed to retrieve payment method", "payment_method_id", paymentMethodID)
	}
	if pm.Customer != nil && pm.Customer.ID == customerID {
		return nil
	}

	_, err = c.sc.V1PaymentMethods.Attach(ctx, paymentMethodID, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return c.wrap(err, "Failed to attach payment method", "payment_method_id", paymentMethodID)
	}
	return nil
}
