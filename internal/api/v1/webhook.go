package v1

import (
	"io"
	"net/http"

	ierr "github.com/flexprice/residence-billing/internal/errors"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/service"
	"github.com/gin-gonic/gin"
)

// maxWebhookBodyBytes caps the payload read before signature verification
const maxWebhookBodyBytes = 1 << 20

// WebhookHandler receives payment provider events
type WebhookHandler struct {
	verifier   *stripeIntegration.WebhookVerifier
	reconciler service.SubscriptionReconciler
	logger     *logger.Logger
}

func NewWebhookHandler(
	verifier *stripeIntegration.WebhookVerifier,
	reconciler service.SubscriptionReconciler,
	logger *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		logger:     logger,
	}
}

// @Summary Handle Stripe webhook events
// @Description Verify and reconcile a Stripe event. Failures return 500 so that Stripe redelivers.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe webhook signature"
// @Success 200 {object} map[string]interface{} "Webhook processed successfully"
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := h.verifier.ConstructEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.WithContext(c.Request.Context()).Debugw("processing webhook",
		"event_id", event.ID,
		"event_type", event.Type,
		"payload_length", len(body),
	)

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		h.logger.WithContext(c.Request.Context()).Errorw("failed to handle webhook event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process webhook event",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Webhook processed successfully",
	})
}
