package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAPI_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/storefront")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadAPI()
	if err != nil {
		t.Fatalf("LoadAPI: %v", err)
	}

	if cfg.Port != "4000" {
		t.Errorf("expected port 4000, got %q", cfg.Port)
	}
	if cfg.ServiceName != "storefront-api" {
		t.Errorf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("expected 7 day token ttl, got %s", cfg.TokenTTL)
	}
	if cfg.OrderTxTimeout != 5*time.Second {
		t.Errorf("expected 5s tx timeout, got %s", cfg.OrderTxTimeout)
	}
	if cfg.OrderMaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.OrderMaxAttempts)
	}
	if cfg.OrderPlaceTimeout != 8*time.Second {
		t.Errorf("expected 8s place timeout, got %s", cfg.OrderPlaceTimeout)
	}
	if cfg.WriteTimeout() != 10*time.Second {
		t.Errorf("expected 10s write timeout, got %s", cfg.WriteTimeout())
	}
	if cfg.OrderPlacedTopic != "order.placed" {
		t.Errorf("unexpected topic %q", cfg.OrderPlacedTopic)
	}
	if len(cfg.KafkaBrokers) != 0 || cfg.RedisURL != "" {
		t.Errorf("optional integrations should be off by default: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadAPI_Overrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/storefront")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("ORDER_TX_TIMEOUT", "750ms")
	t.Setenv("PORT", "8080")

	cfg, err := LoadAPI()
	if err != nil {
		t.Fatalf("LoadAPI: %v", err)
	}

	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.OrderTxTimeout != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", cfg.OrderTxTimeout)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %q", cfg.Port)
	}
}

func TestAPI_WriteTimeoutCoversPlacement(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/storefront")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ORDER_PLACE_TIMEOUT", "30s")

	cfg, err := LoadAPI()
	if err != nil {
		t.Fatalf("LoadAPI: %v", err)
	}
	if got := cfg.WriteTimeout(); got != 32*time.Second {
		t.Errorf("expected 32s write timeout, got %s", got)
	}
}

func TestLoadAPI_Required(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing postgres", map[string]string{"POSTGRES_URL": "", "JWT_SECRET": "secret"}},
		{"missing secret", map[string]string{"POSTGRES_URL": "postgres://localhost/x", "JWT_SECRET": ""}},
		{"zero attempts", map[string]string{"POSTGRES_URL": "postgres://localhost/x", "JWT_SECRET": "s", "ORDER_MAX_ATTEMPTS": "0"}},
		{"place timeout below tx timeout", map[string]string{"POSTGRES_URL": "postgres://localhost/x", "JWT_SECRET": "s", "ORDER_PLACE_TIMEOUT": "1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
				if v == "" {
					_ = os.Unsetenv(k)
				}
			}
			if _, err := LoadAPI(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadWorker(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("EMAIL_SERVICE_URL", "http://email:8084")

	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker: %v", err)
	}
	if cfg.ConsumerGroup != "notification-worker" {
		t.Errorf("unexpected group %q", cfg.ConsumerGroup)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("unexpected timeout %s", cfg.HTTPTimeout)
	}
}
