package config

import (
	"strings"
	"time"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

// Config holds the loaded configuration
type Config struct {
	Port           string
	Env            string
	GatewayURL     string
	RequestTimeout time.Duration
	RedisURL       string
	CacheTTL       time.Duration
	FeaturedLimit  int
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:           common.GetEnv("PORT", "8090"),
		Env:            common.GetEnv("ENV", "development"),
		GatewayURL:     strings.TrimRight(common.GetEnv("API_GATEWAY_URL", "http://api-gateway:8080"), "/"),
		RequestTimeout: common.GetEnvDuration("BFF_REQUEST_TIMEOUT", 10*time.Second),
		RedisURL:       common.GetEnv("REDIS_URL", ""),
		CacheTTL:       common.GetEnvDuration("BFF_CACHE_TTL", 30*time.Second),
		FeaturedLimit:  common.GetEnvInt("BFF_FEATURED_LIMIT", 6),
	}

	if err := common.Require(map[string]string{"API_GATEWAY_URL": cfg.GatewayURL}); err != nil {
		return nil, err
	}
	return cfg, nil
}
