package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/services/bff-service/cache"
	"github.com/yashrajoria/vm-marketplace/services/bff-service/clients"
	"github.com/yashrajoria/vm-marketplace/services/bff-service/config"
	"github.com/yashrajoria/vm-marketplace/services/bff-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/bff-service/routes"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
)

const serviceName = "bff-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, serviceName)
	defer logger.Sync() //nolint:errcheck

	metrics := server.NewMetricsClient(ctx, logger)

	// Redis is optional; without it the featured listings are fetched per request.
	var pageCache cache.Cache = cache.Nop{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, page cache disabled", zap.Error(err))
			_ = client.Close()
		} else {
			defer client.Close() //nolint:errcheck
			pageCache = cache.NewRedisCache(client, cfg.CacheTTL, logger)
			logger.Info("Connected to Redis (BFF)", zap.String("addr", opts.Addr))
		}
	}

	gateway := clients.NewGatewayClient(cfg.GatewayURL, cfg.RequestTimeout)
	controller := controllers.NewBFFController(gateway, pageCache, cfg.FeaturedLimit, logger)

	r := server.NewRouter(server.Options{
		ServiceName:    serviceName,
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.RequestTimeout + 5*time.Second,
	})
	routes.RegisterRoutes(r, controller)

	server.Run(cfg.Port, r, logger)
}
