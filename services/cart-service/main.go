package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/cart-service/config"
	"github.com/yashrajoria/vm-marketplace/services/cart-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/cart-service/database"
	"github.com/yashrajoria/vm-marketplace/services/cart-service/routes"
	"github.com/yashrajoria/vm-marketplace/services/cart-service/services"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
)

const serviceName = "cart-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, serviceName)
	defer logger.Sync() //nolint:errcheck

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	publisher, err := events.NewTopicPublisher(ctx, events.Config{
		Bus:          cfg.EventBus,
		Source:       serviceName,
		KafkaBrokers: events.ParseBrokers(cfg.KafkaBrokers),
	}, cfg.EventsTopic, logger)
	if err != nil {
		logger.Fatal("Failed to init event publisher", zap.Error(err))
	}
	defer publisher.Close() //nolint:errcheck

	metrics := server.NewMetricsClient(ctx, logger)

	repo := database.NewCartRepository(redisClient, cfg.CartTTL)
	cartService := services.NewCartService(
		repo,
		catalog.NewClient(cfg.CatalogURL),
		publisher,
		metrics,
		cfg.IdempotencyTTL,
		logger,
	)
	controller := controllers.NewCartController(cartService, logger)

	r := server.NewRouter(server.Options{ServiceName: serviceName, Logger: logger, Metrics: metrics})
	routes.RegisterCartRoutes(r, controller)

	server.Run(cfg.Port, r, logger)
}
