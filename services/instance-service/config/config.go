package config

import (
	"context"
	"fmt"
	"time"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

const (
	ProvisionerSimulated = "simulated"
	ProvisionerHTTP      = "http"
)

type Config struct {
	Port     string
	Env      string
	Database common.DatabaseConfig

	CatalogURL string

	ProvisionerMode    string
	ProvisionerURL     string
	ProvisionerToken   string
	ProvisionerTimeout time.Duration

	EventBus     string
	KafkaBrokers string
	EventsTopic  string
	// InstanceQueue receives cart and payment events.
	InstanceQueue string
	// PaymentRequestQueue is where payment requests for orders are sent.
	PaymentRequestQueue string
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:                common.GetEnv("PORT", "8085"),
		Env:                 common.GetEnv("ENV", "development"),
		Database:            common.LoadDatabaseConfig("instances"),
		CatalogURL:          common.GetEnv("CATALOG_SERVICE_URL", "http://catalog-service:8082"),
		ProvisionerMode:     common.GetEnv("PROVISIONER_MODE", ProvisionerSimulated),
		ProvisionerURL:      common.GetEnv("PROVISIONER_URL", ""),
		ProvisionerToken:    common.GetEnv("PROVISIONER_TOKEN", ""),
		ProvisionerTimeout:  common.GetEnvDuration("PROVISIONER_TIMEOUT", 15*time.Second),
		EventBus:            common.GetEnv("EVENT_BUS", "sns"),
		KafkaBrokers:        common.GetEnv("KAFKA_BROKERS", ""),
		EventsTopic:         common.GetEnv("INSTANCE_EVENTS_TOPIC", ""),
		InstanceQueue:       common.GetEnv("INSTANCE_QUEUE_URL", ""),
		PaymentRequestQueue: common.GetEnv("PAYMENT_REQUEST_QUEUE_URL", ""),
	}

	if err := common.ApplySecrets(context.Background(), map[string]*string{
		"DB_PASSWORD":       &cfg.Database.Password,
		"PROVISIONER_TOKEN": &cfg.ProvisionerToken,
	}); err != nil {
		return nil, fmt.Errorf("secrets override: %w", err)
	}

	switch cfg.ProvisionerMode {
	case ProvisionerSimulated:
	case ProvisionerHTTP:
		if err := common.Require(map[string]string{"PROVISIONER_URL": cfg.ProvisionerURL}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown PROVISIONER_MODE %q", cfg.ProvisionerMode)
	}
	return cfg, nil
}
