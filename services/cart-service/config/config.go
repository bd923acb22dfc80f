package config

import (
	"time"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

type Config struct {
	Port           string
	Env            string
	RedisURL       string
	CatalogURL     string
	CartTTL        time.Duration
	IdempotencyTTL time.Duration
	EventBus       string
	KafkaBrokers   string
	EventsTopic    string
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:           common.GetEnv("PORT", "8083"),
		Env:            common.GetEnv("ENV", "development"),
		RedisURL:       common.GetEnv("REDIS_URL", "redis://localhost:6379/1"),
		CatalogURL:     common.GetEnv("CATALOG_SERVICE_URL", "http://catalog-service:8082"),
		CartTTL:        common.GetEnvDuration("CART_TTL", 7*24*time.Hour),
		IdempotencyTTL: common.GetEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		EventBus:       common.GetEnv("EVENT_BUS", "sns"),
		KafkaBrokers:   common.GetEnv("KAFKA_BROKERS", ""),
		EventsTopic:    common.GetEnv("CART_EVENTS_TOPIC", ""),
	}

	if err := common.Require(map[string]string{"REDIS_URL": cfg.RedisURL}); err != nil {
		return nil, err
	}
	return cfg, nil
}
