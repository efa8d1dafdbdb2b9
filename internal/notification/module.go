package notification

import (
	"context"

	"github.com/flexprice/residence-billing/internal/config"
	ierr "github.com/flexprice/residence-billing/internal/errors"
	"github.com/flexprice/residence-billing/internal/httpclient"
	"github.com/flexprice/residence-billing/internal/logger"
	"github.com/flexprice/residence-billing/internal/pubsub"
	"github.com/flexprice/residence-billing/internal/pubsub/kafka"
	"github.com/flexprice/residence-billing/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/residence-billing/internal/pubsub/router"
	"github.com/flexprice/residence-billing/internal/types"
	"go.uber.org/fx"
)

// Module provides the notification pipeline: pubsub backend, publisher,
// delivery handler and the router that drives it
var Module = fx.Options(
	fx.Provide(
		providePubSub,
		provideHTTPClient,
		pubsubRouter.NewRouter,
		NewPublisher,
		NewHandler,
	),
	fx.Invoke(startRouter),
)

func providePubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Notification.PubSub {
	case types.MemoryPubSub:
		return memory.NewPubSub(logger), nil
	case types.KafkaPubSub:
		return kafka.NewPubSub(cfg, logger)
	}
	return nil, ierr.NewErrorf("unsupported pubsub type %q", cfg.Notification.PubSub).
		WithHint("notification.pubsub must be memory or kafka").
		Mark(ierr.ErrValidation)
}

func provideHTTPClient(cfg *config.Configuration, logger *logger.Logger) httpclient.Client {
	clientCfg := httpclient.DefaultClientConfig
	if cfg.Notification.RequestTimeout > 0 {
		clientCfg.Timeout = cfg.Notification.RequestTimeout
	}
	return httpclient.NewDefaultClient(clientCfg, logger)
}

func startRouter(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *pubsubRouter.Router,
	handler Handler,
	publisher Publisher,
	logger *logger.Logger,
) {
	if !cfg.Notification.Enabled {
		logger.Info("notifications disabled, router not started")
		return
	}

	handler.RegisterHandler(router)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Errorw("notification router stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := router.Close(); err != nil {
				logger.Errorw("failed to close notification router", "error", err)
			}
			return publisher.Close()
		},
	})
}
