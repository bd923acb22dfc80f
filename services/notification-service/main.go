package main

import (
	"context"
	"log"
	"strings"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/common/database"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/config"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/models"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/routes"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/sender"
	"github.com/yashrajoria/vm-marketplace/services/notification-service/services"
)

const serviceName = "notification-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, serviceName)
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database, logger, &models.Contact{}, &models.NotificationLog{})
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	metrics := server.NewMetricsClient(ctx, logger)

	var emailSender sender.EmailSender = sender.NewLogSender(logger)
	if cfg.EmailMode == config.EmailModeSMTP {
		emailSender = sender.NewSMTPSender(cfg.SMTP)
	}

	svc, err := services.NewNotificationService(
		repository.NewNotificationRepository(db), emailSender, metrics, logger,
		services.Options{AppURL: cfg.AppURL, Attempts: cfg.SendAttempts, Backoff: cfg.RetryBackoff},
	)
	if err != nil {
		logger.Fatal("Failed to initialize notification service", zap.Error(err))
	}

	r := server.NewRouter(server.Options{ServiceName: serviceName, Logger: logger, Metrics: metrics})
	routes.RegisterRoutes(r, controllers.NewNotificationController(svc, logger))

	evCfg := events.Config{
		Bus:          cfg.EventBus,
		Source:       serviceName,
		KafkaBrokers: events.ParseBrokers(cfg.KafkaBrokers),
		KafkaGroupID: serviceName,
	}
	// With the kafka bus the queue setting may name several topics.
	var background []func(context.Context)
	for _, queue := range strings.Split(cfg.NotificationQueue, ",") {
		queue = strings.TrimSpace(queue)
		if queue == "" {
			continue
		}
		sub, err := events.NewSubscriber(ctx, evCfg, queue, logger)
		if err != nil {
			logger.Fatal("Failed to init event subscriber", zap.String("queue", queue), zap.Error(err))
		}
		defer sub.Close() //nolint:errcheck
		background = append(background, func(ctx context.Context) { svc.Run(ctx, sub) })
	}
	if len(background) == 0 {
		logger.Warn("NOTIFICATION_QUEUE_URL not set, no emails will be sent")
	}

	server.Run(cfg.Port, r, logger, background...)
}
