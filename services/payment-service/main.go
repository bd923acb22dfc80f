package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/common/database"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/config"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/consumers"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/gateway"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/models"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/routes"
	"github.com/yashrajoria/vm-marketplace/services/payment-service/services"
)

const serviceName = "payment-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, serviceName)
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database, logger, &models.Payment{}, &models.StripeCustomer{}, &models.ProcessedEvent{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	eventsCfg := events.Config{
		Bus:          cfg.EventBus,
		Source:       serviceName,
		KafkaBrokers: events.ParseBrokers(cfg.KafkaBrokers),
		KafkaGroupID: serviceName,
	}
	publisher, err := events.NewTopicPublisher(ctx, eventsCfg, cfg.EventsTopic, logger)
	if err != nil {
		logger.Fatal("Failed to init event publisher", zap.Error(err))
	}
	defer publisher.Close() //nolint:errcheck

	metrics := server.NewMetricsClient(ctx, logger)

	paymentService := services.NewPaymentService(
		repository.NewGormPaymentRepo(db),
		gateway.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		catalog.NewClient(cfg.CatalogURL),
		publisher,
		metrics,
		services.Options{FrontendURL: cfg.FrontendURL, Currency: cfg.Currency},
		logger,
	)

	r := server.NewRouter(server.Options{ServiceName: serviceName, Logger: logger, Metrics: metrics})
	routes.RegisterPaymentRoutes(r,
		controllers.NewPaymentController(paymentService, logger),
		controllers.NewWebhookController(paymentService, logger),
	)

	var background []func(context.Context)
	if cfg.RequestQueue != "" {
		sub, err := events.NewSubscriber(ctx, eventsCfg, cfg.RequestQueue, logger)
		if err != nil {
			logger.Fatal("Failed to init payment request subscriber", zap.Error(err))
		}
		defer sub.Close() //nolint:errcheck
		consumer := consumers.NewPaymentRequestConsumer(paymentService, logger)
		background = append(background, func(ctx context.Context) { consumer.Run(ctx, sub) })
	} else {
		logger.Warn("PAYMENT_REQUEST_QUEUE_URL not set, cart orders will not get checkout sessions")
	}

	server.Run(cfg.Port, r, logger, background...)
}
