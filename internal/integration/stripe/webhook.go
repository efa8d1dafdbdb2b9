package stripe

import (
	"encoding/json"

	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Event types the reconciler reacts to
const (
	EventCheckoutSessionCompleted    stripe.EventType = "checkout.session.completed"
	EventInvoicePaid                 stripe.EventType = "invoice.paid"
	EventInvoicePaymentSucceeded     stripe.EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed        stripe.EventType = "invoice.payment_failed"
	EventCustomerSubscriptionUpdated stripe.EventType = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted stripe.EventType = "customer.subscription.deleted"
)

// WebhookVerifier checks provider signatures on inbound webhook payloads
type WebhookVerifier struct {
	secret string
	logger *logger.Logger
}

func NewWebhookVerifier(cfg *config.Configuration, logger *logger.Logger) *WebhookVerifier {
	return &WebhookVerifier{secret: cfg.Stripe.WebhookSecret, logger: logger}
}

// ConstructEvent verifies the signature header and decodes the event
func (v *WebhookVerifier) ConstructEvent(payload []byte, signature string) (*stripe.Event, error) {
	if signature == "" {
		return nil, ierr.NewError("missing stripe signature").
			WithHint("Stripe-Signature header is required").
			Mark(ierr.ErrValidation)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		v.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}

// DecodeEventObject unmarshals the event's data.object into T
func DecodeEventObject[T any](event *stripe.Event) (*T, error) {
	if event == nil || event.Data == nil {
		return nil, ierr.NewError("event has no data").
			WithHint("Webhook event carried no object").
			Mark(ierr.ErrValidation)
	}

	var obj T
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to decode webhook event object").
			WithReportableDetails(map[string]any{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).
			Mark(ierr.ErrValidation)
	}
	return &obj, nil
}
