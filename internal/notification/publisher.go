package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/idempotency"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/pubsub"
	"github.com/flexprice/residence-billing/internal/types"
)

const metadataIdempotencyKey = "idempotency_key"

// Publisher hands billing notifications to the notification topic
type Publisher interface {
	// Publish wraps payload in a Notification keyed by (name, objectID) and publishes it.
	// objectID is the provider object the notification is about.
	Publish(ctx context.Context, name types.NotificationName, userID, residenceID, objectID string, payload any) error
	Close() error
}

type publisher struct {
	pubSub    pubsub.PubSub
	config    *config.NotificationConfig
	generator *idempotency.Generator
	logger    *logger.Logger
}

func NewPublisher(pubSub pubsub.PubSub, cfg *config.Configuration, logger *logger.Logger) Publisher {
	return &publisher{
		pubSub:    pubSub,
		config:    &cfg.Notification,
		generator: idempotency.NewGenerator(),
		logger:    logger,
	}
}

func (p *publisher) Publish(ctx context.Context, name types.NotificationName, userID, residenceID, objectID string, payload any) error {
	if !p.config.Enabled {
		p.logger.Debugw("notifications disabled, skipping", "name", name, "object_id", objectID)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal notification payload").
			Mark(ierr.ErrValidation)
	}

	n := &types.Notification{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NOTIFICATION),
		Name:           name,
		UserID:         userID,
		ResidenceID:    residenceID,
		IdempotencyKey: p.generator.NotificationKey(string(name), objectID),
		Timestamp:      time.Now().UTC(),
		Payload:        body,
	}

	data, err := json.Marshal(n)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal notification").
			Mark(ierr.ErrValidation)
	}

	msg := message.NewMessage(n.ID, data)
	msg.Metadata.Set(metadataIdempotencyKey, n.IdempotencyKey)
	msg.Metadata.Set("user_id", userID)

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish notification",
			"error", err,
			"notification_id", n.ID,
			"name", name,
			"user_id", userID,
		)
		return ierr.WithError(err).
			WithHint("Failed to publish notification").
			Mark(ierr.ErrSystem)
	}

	p.logger.Infow("published notification",
		"notification_id", n.ID,
		"name", name,
		"user_id", userID,
		"idempotency_key", n.IdempotencyKey,
	)
	return nil
}

func (p *publisher) Close() error {
	return p.pubSub.Close()
}
