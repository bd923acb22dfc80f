package config

import (
	"context"
	"fmt"
	"strings"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

type Config struct {
	Port                string
	Env                 string
	Database            common.DatabaseConfig
	StripeSecretKey     string
	StripeWebhookSecret string
	FrontendURL         string
	CatalogURL          string
	Currency            string
	EventBus            string
	KafkaBrokers        string
	EventsTopic         string
	RequestQueue        string
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:                common.GetEnv("PORT", "8084"),
		Env:                 common.GetEnv("ENV", "development"),
		Database:            common.LoadDatabaseConfig("payments"),
		StripeSecretKey:     common.GetEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: common.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		FrontendURL:         strings.TrimRight(common.GetEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		CatalogURL:          common.GetEnv("CATALOG_SERVICE_URL", "http://catalog-service:8082"),
		Currency:            strings.ToLower(common.GetEnv("PAYMENT_CURRENCY", "usd")),
		EventBus:            common.GetEnv("EVENT_BUS", "sns"),
		KafkaBrokers:        common.GetEnv("KAFKA_BROKERS", ""),
		EventsTopic:         common.GetEnv("PAYMENT_EVENTS_TOPIC", ""),
		RequestQueue:        common.GetEnv("PAYMENT_REQUEST_QUEUE_URL", ""),
	}

	if err := common.ApplySecrets(context.Background(), map[string]*string{
		"DB_PASSWORD":           &cfg.Database.Password,
		"STRIPE_SECRET_KEY":     &cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &cfg.StripeWebhookSecret,
	}); err != nil {
		return nil, fmt.Errorf("secrets override: %w", err)
	}

	if err := common.Require(map[string]string{
		"STRIPE_SECRET_KEY":     cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}
