package main

import (
	"context"
	"log"
	"strings"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/app"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/config"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/routes"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, app.ServiceName)
	defer logger.Sync() //nolint:errcheck

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialise service", zap.Error(err))
	}
	defer a.Close() //nolint:errcheck

	r := server.NewRouter(server.Options{ServiceName: app.ServiceName, Logger: logger, Metrics: a.Metrics})
	routes.RegisterRoutes(r,
		controllers.NewOrderController(a.Orders),
		controllers.NewInstanceController(a.Instances),
	)

	// With the kafka bus the queue setting may name several topics.
	var background []func(context.Context)
	for _, queue := range strings.Split(cfg.InstanceQueue, ",") {
		queue = strings.TrimSpace(queue)
		if queue == "" {
			continue
		}
		sub, err := events.NewSubscriber(ctx, a.Events, queue, logger)
		if err != nil {
			logger.Fatal("Failed to init event subscriber", zap.String("queue", queue), zap.Error(err))
		}
		defer sub.Close() //nolint:errcheck
		background = append(background, func(ctx context.Context) { a.Consumer.Run(ctx, sub) })
	}
	if len(background) == 0 {
		logger.Warn("INSTANCE_QUEUE_URL not set, orders will not be created from checkouts")
	}

	server.Run(cfg.Port, r, logger, background...)
}
