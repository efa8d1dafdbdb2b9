package config

import (
	"time"

	"github.com/flexprice/residence-billing/internal/types"
)

// NotificationConfig represents the configuration for billing notifications
// handed to the external mailer
type NotificationConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Topic   string           `mapstructure:"topic" validate:"required"`
	PubSub  types.PubSubType `mapstructure:"pubsub" validate:"required"`
	// Endpoint receives each notification as a JSON POST. Empty disables delivery.
	Endpoint       string        `mapstructure:"endpoint"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}
