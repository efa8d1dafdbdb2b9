package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/httpclient"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/pubsub"
	pubsubRouter "github.com/flexprice/residence-billing/internal/pubsub/router"
	"github.com/flexprice/residence-billing/internal/types"
)

const handlerName = "notification_delivery"

// Handler delivers notifications from the topic to the mailer endpoint
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.NotificationConfig
	client httpclient.Client
	logger *logger.Logger
}

func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	client httpclient.Client,
	logger *logger.Logger,
) Handler {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Notification,
		client: client,
		logger: logger,
	}
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		handlerName,
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

func (h *handler) processMessage(msg *message.Message) error {
	var n types.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		return ierr.WithError(err).
			WithHintf("Malformed notification message %s", msg.UUID).
			Mark(ierr.ErrValidation)
	}

	ctx := types.SetUserID(msg.Context(), n.UserID)
	return h.deliver(ctx, &n)
}

func (h *handler) deliver(ctx context.Context, n *types.Notification) error {
	if h.config.Endpoint == "" {
		h.logger.Debugw("no notification endpoint configured, dropping",
			"notification_id", n.ID,
			"name", n.Name,
		)
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return ierr.WithError(err).Mark(ierr.ErrValidation)
	}

	headers := map[string]string{
		types.HeaderIdempotencyKey: n.IdempotencyKey,
	}
	if h.config.APIKey != "" {
		headers[types.HeaderAuthorization] = "Bearer " + h.config.APIKey
	}

	resp, err := h.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     h.config.Endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		h.logger.Errorw("failed to deliver notification",
			"error", err,
			"notification_id", n.ID,
			"name", n.Name,
			"user_id", n.UserID,
		)
		return err
	}

	h.logger.Infow("notification delivered",
		"notification_id", n.ID,
		"name", n.Name,
		"user_id", n.UserID,
		"status_code", resp.StatusCode,
	)
	return nil
}
