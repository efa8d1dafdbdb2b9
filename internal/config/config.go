package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/residence-billing/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig   `validate:"required"`
	Server       ServerConfig       `validate:"required"`
	Auth         AuthConfig         `validate:"required"`
	Logging      LoggingConfig      `validate:"required"`
	Postgres     PostgresConfig     `validate:"required"`
	Stripe       StripeConfig       `validate:"required"`
	Billing      BillingConfig      `validate:"required"`
	Cache        CacheConfig        `validate:"required"`
	Notification NotificationConfig `validate:"required"`
	Kafka        KafkaConfig
	Sentry       SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key" validate:"required"`
	WebhookSecret string `mapstructure:"webhook_secret" validate:"required"`
}

// BillingConfig holds the knobs of the two-tier subscription engine
type BillingConfig struct {
	FrontendURL string `mapstructure:"frontend_url"`
	// ResidenceRecheck bounds how long a ranking confirmation waits for its
	// residence subscription to become visible
	ResidenceRecheck   types.RetryPolicy `mapstructure:"residence_recheck"`
	FreePlanFeatureKey string            `mapstructure:"free_plan_feature_key"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/residence-billing")

	v.SetEnvPrefix("RESBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("billing.residence_recheck.max_attempts", types.DefaultResidenceRecheckPolicy.MaxAttempts)
	v.SetDefault("billing.residence_recheck.delay", types.DefaultResidenceRecheckPolicy.Delay)
	v.SetDefault("billing.free_plan_feature_key", types.FreeResidencePlanFeatureKey)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.topic", "billing_notifications")
	v.SetDefault("notification.pubsub", types.MemoryPubSub)
	v.SetDefault("notification.max_retries", 3)
	v.SetDefault("notification.initial_interval", time.Second)
	v.SetDefault("notification.max_interval", 10*time.Second)
	v.SetDefault("notification.multiplier", 2.0)
	v.SetDefault("notification.max_elapsed_time", 2*time.Minute)
	v.SetDefault("notification.request_timeout", 10*time.Second)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			ResidenceRecheck:   types.DefaultResidenceRecheckPolicy,
			FreePlanFeatureKey: types.FreeResidencePlanFeatureKey,
		},
		Cache: CacheConfig{Enabled: true, TTL: 5 * time.Minute},
		Notification: NotificationConfig{
			Enabled: true,
			Topic:   "billing_notifications",
			PubSub:  types.MemoryPubSub,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
