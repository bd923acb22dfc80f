package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

// Upstreams are the base URLs of the services behind the gateway.
type Upstreams struct {
	Auth         string
	Catalog      string
	Cart         string
	Payment      string
	Instance     string
	Notification string
	BFF          string
}

type Config struct {
	Port               string
	Env                string
	JWTSecret          string
	AccessCookie       string
	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int
	UpstreamTimeout    time.Duration
	Upstreams          Upstreams
}

func url(key, fallback string) string {
	return strings.TrimRight(common.GetEnv(key, fallback), "/")
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:               common.GetEnv("PORT", "8080"),
		Env:                common.GetEnv("ENV", "development"),
		JWTSecret:          common.GetEnv("JWT_SECRET", ""),
		AccessCookie:       common.GetEnv("ACCESS_TOKEN_COOKIE", "access_token"),
		AllowedOrigins:     middleware.ParseOrigins(common.GetEnv("ALLOWED_ORIGINS", "")),
		RateLimitPerMinute: common.GetEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		RateLimitBurst:     common.GetEnvInt("RATE_LIMIT_BURST", 50),
		UpstreamTimeout:    common.GetEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		Upstreams: Upstreams{
			Auth:         url("AUTH_SERVICE_URL", "http://auth-service:8081"),
			Catalog:      url("CATALOG_SERVICE_URL", "http://catalog-service:8082"),
			Cart:         url("CART_SERVICE_URL", "http://cart-service:8083"),
			Payment:      url("PAYMENT_SERVICE_URL", "http://payment-service:8084"),
			Instance:     url("INSTANCE_SERVICE_URL", "http://instance-service:8085"),
			Notification: url("NOTIFICATION_SERVICE_URL", "http://notification-service:8086"),
			BFF:          url("BFF_SERVICE_URL", "http://bff-service:8090"),
		},
	}

	if err := common.ApplySecrets(context.Background(), map[string]*string{
		"JWT_SECRET": &cfg.JWTSecret,
	}); err != nil {
		return nil, fmt.Errorf("secrets override: %w", err)
	}

	if err := common.Require(map[string]string{"JWT_SECRET": cfg.JWTSecret}); err != nil {
		return nil, err
	}
	return cfg, nil
}
