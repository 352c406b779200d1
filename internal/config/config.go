// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Telemetry is shared by every long-running process.
type Telemetry struct {
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"1.0.0"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	// OTLPEndpoint is the collector address; tracing is disabled when empty.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type API struct {
	Telemetry

	ServiceName string `envconfig:"SERVICE_NAME" default:"storefront-api"`
	Port        string `envconfig:"PORT" default:"4000"`
	PostgresURL string `envconfig:"POSTGRES_URL" required:"true"`

	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL   time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"10"`

	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	OrderPlacedTopic string   `envconfig:"ORDER_PLACED_TOPIC" default:"order.placed"`

	RedisURL        string        `envconfig:"REDIS_URL"`
	ProductCacheTTL time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"5m"`

	OrderTxTimeout   time.Duration `envconfig:"ORDER_TX_TIMEOUT" default:"5s"`
	OrderMaxAttempts uint          `envconfig:"ORDER_MAX_ATTEMPTS" default:"3"`
	// OrderPlaceTimeout bounds a placement including every retry.
	OrderPlaceTimeout time.Duration `envconfig:"ORDER_PLACE_TIMEOUT" default:"8s"`
}

// WriteTimeout leaves room for a placement that runs up to its deadline
// before the response is written.
func (c API) WriteTimeout() time.Duration {
	return max(10*time.Second, c.OrderPlaceTimeout+2*time.Second)
}

type Worker struct {
	Telemetry

	ServiceName      string        `envconfig:"SERVICE_NAME" default:"notification-worker"`
	KafkaBrokers     []string      `envconfig:"KAFKA_BROKERS" required:"true"`
	OrderPlacedTopic string        `envconfig:"ORDER_PLACED_TOPIC" default:"order.placed"`
	ConsumerGroup    string        `envconfig:"CONSUMER_GROUP" default:"notification-worker"`
	EmailServiceURL  string        `envconfig:"EMAIL_SERVICE_URL" required:"true"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
}

type Email struct {
	Telemetry

	ServiceName string `envconfig:"SERVICE_NAME" default:"email-service"`
	Port        string `envconfig:"PORT" default:"8084"`
	// MaxDelay caps the simulated delivery latency.
	MaxDelay time.Duration `envconfig:"EMAIL_MAX_DELAY" default:"200ms"`
}

type Migrate struct {
	PostgresURL    string `envconfig:"POSTGRES_URL" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
}

func LoadAPI() (API, error) {
	var cfg API
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load api config: %w", err)
	}
	if cfg.OrderMaxAttempts == 0 {
		return cfg, fmt.Errorf("load api config: ORDER_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.OrderPlaceTimeout < cfg.OrderTxTimeout {
		return cfg, fmt.Errorf("load api config: ORDER_PLACE_TIMEOUT must not be shorter than ORDER_TX_TIMEOUT")
	}
	return cfg, nil
}

func LoadWorker() (Worker, error) {
	var cfg Worker
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load worker config: %w", err)
	}
	return cfg, nil
}

func LoadEmail() (Email, error) {
	var cfg Email
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load email config: %w", err)
	}
	return cfg, nil
}

func LoadMigrate() (Migrate, error) {
	var cfg Migrate
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load migrate config: %w", err)
	}
	return cfg, nil
}
