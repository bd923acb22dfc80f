package config

import (
	"context"
	"fmt"
	"time"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

// Config holds all configuration for the auth service.
type Config struct {
	Port         string
	Env          string
	JWTSecret    string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	CookieDomain string
	CookieSecure bool
	Database     common.DatabaseConfig
	EventBus     string
	KafkaBrokers string
	EventsTopic  string
	EventsQueue  string
}

// LoadConfig reads configuration from the environment with an optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:         common.GetEnv("PORT", "8081"),
		Env:          common.GetEnv("ENV", "development"),
		JWTSecret:    common.GetEnv("JWT_SECRET", ""),
		AccessTTL:    common.GetEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:   common.GetEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		CookieDomain: common.GetEnv("COOKIE_DOMAIN", ""),
		CookieSecure: common.GetEnvBool("COOKIE_SECURE", false),
		Database:     common.LoadDatabaseConfig("auth"),
		EventBus:     common.GetEnv("EVENT_BUS", "sns"),
		KafkaBrokers: common.GetEnv("KAFKA_BROKERS", ""),
		EventsTopic:  common.GetEnv("AUTH_EVENTS_TOPIC", ""),
		EventsQueue:  common.GetEnv("AUTH_EVENTS_QUEUE", ""),
	}

	if err := common.ApplySecrets(context.Background(), map[string]*string{
		"JWT_SECRET":  &cfg.JWTSecret,
		"DB_PASSWORD": &cfg.Database.Password,
	}); err != nil {
		return nil, fmt.Errorf("secrets override: %w", err)
	}

	if err := common.Require(map[string]string{"JWT_SECRET": cfg.JWTSecret}); err != nil {
		return nil, err
	}
	return cfg, nil
}
