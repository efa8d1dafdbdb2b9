package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	stripeIntegration "github.com/flexprice/residence-billing/internal/integration/stripe"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/rest/middleware"
	"github.com/flexprice/residence-billing/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

// recordingReconciler captures dispatched events
type recordingReconciler struct {
	service.SubscriptionReconciler
	events []*stripe.Event
	err    error
}

func (r *recordingReconciler) HandleEvent(_ context.Context, event *stripe.Event) error {
	r.events = append(r.events, event)
	return r.err
}

type WebhookHandlerSuite struct {
	suite.Suite
	reconciler *recordingReconciler
	router     *gin.Engine
}

func TestWebhookHandler(t *testing.T) {
	suite.Run(t, new(WebhookHandlerSuite))
}

func (s *WebhookHandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	log := logger.NewNoopLogger()
	cfg := &config.Configuration{Stripe: config.StripeConfig{WebhookSecret: testWebhookSecret}}

	s.reconciler = &recordingReconciler{}
	handler := NewWebhookHandler(stripeIntegration.NewWebhookVerifier(cfg, log), s.reconciler, log)

	s.router = gin.New()
	s.router.Use(middleware.ErrorHandler(log))
	s.router.POST("/v1/webhooks/stripe", handler.HandleStripeWebhook)
}

func (s *WebhookHandlerSuite) payload() []byte {
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        string(stripeIntegration.EventCheckoutSessionCompleted),
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{"id": "cs_1", "object": "checkout.session"},
		},
	})
	s.Require().NoError(err)
	return payload
}

func (s *WebhookHandlerSuite) post(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *WebhookHandlerSuite) TestDispatchesVerifiedEvent() {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: s.payload(), Secret: testWebhookSecret})

	w := s.post(signed.Payload, signed.Header)
	s.Equal(http.StatusOK, w.Code)
	s.Require().Len(s.reconciler.events, 1)
	s.Equal("evt_1", s.reconciler.events[0].ID)
	s.Equal(stripeIntegration.EventCheckoutSessionCompleted, s.reconciler.events[0].Type)
}

func (s *WebhookHandlerSuite) TestRejectsBadSignature() {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: s.payload(), Secret: "whsec_forged"})

	w := s.post(signed.Payload, signed.Header)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Empty(s.reconciler.events)

	w = s.post(s.payload(), "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Empty(s.reconciler.events)
}

func (s *WebhookHandlerSuite) TestProcessingFailureAsksForRedelivery() {
	s.reconciler.err = ierr.NewError("connection reset").Mark(ierr.ErrDatabase)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: s.payload(), Secret: testWebhookSecret})

	w := s.post(signed.Payload, signed.Header)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.Len(s.reconciler.events, 1)
}
