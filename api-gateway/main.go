package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/api-gateway/config"
	"github.com/yashrajoria/vm-marketplace/api-gateway/middlewares"
	"github.com/yashrajoria/vm-marketplace/api-gateway/routes"
	"github.com/yashrajoria/vm-marketplace/api-gateway/utils"
	"github.com/yashrajoria/vm-marketplace/services/common/auth"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
)

const serviceName = "api-gateway"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, serviceName)
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting API Gateway...", zap.Strings("allowed_origins", cfg.AllowedOrigins))

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, 0, 0)
	if err != nil {
		logger.Fatal("Failed to init token manager", zap.Error(err))
	}

	r := server.NewRouter(server.Options{
		ServiceName:    serviceName,
		Logger:         logger,
		Metrics:        server.NewMetricsClient(ctx, logger),
		RequestTimeout: cfg.UpstreamTimeout,
	})
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	r.Use(middlewares.StripIdentity())

	routes.RegisterAllRoutes(r,
		middlewares.NewAuthenticator(tokens, cfg.AccessCookie),
		utils.NewForwarder(cfg.UpstreamTimeout, logger),
		cfg.Upstreams,
	)

	server.Run(cfg.Port, r, logger)
}
