package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/config"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/consumers"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/models"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/routes"
	"github.com/yashrajoria/vm-marketplace/services/auth-service/services"
	"github.com/yashrajoria/vm-marketplace/services/common/auth"
	"github.com/yashrajoria/vm-marketplace/services/common/database"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
)

const serviceName = "auth-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, serviceName)
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(cfg.Database, logger, &models.User{}, &models.RefreshToken{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		logger.Fatal("Failed to init token manager", zap.Error(err))
	}

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

	repo := repository.NewUserRepository(db)
	authService := services.NewAuthService(repo, tokens, publisher, metrics, logger)
	authController := controllers.NewAuthController(authService, controllers.CookieOptions{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	})

	r := server.NewRouter(server.Options{ServiceName: serviceName, Logger: logger, Metrics: metrics})
	routes.RegisterAuthRoutes(r, authController)

	background := []func(context.Context){
		func(ctx context.Context) {
			purgeExpiredTokens(ctx, repo.(*repository.GormUserRepository), logger)
		},
	}
	if cfg.EventsQueue != "" {
		sub, err := events.NewSubscriber(ctx, eventsCfg, cfg.EventsQueue, logger)
		if err != nil {
			logger.Fatal("Failed to init event subscriber", zap.Error(err))
		}
		defer sub.Close() //nolint:errcheck
		consumer := consumers.NewProviderConsumer(repo, logger)
		background = append(background, func(ctx context.Context) { consumer.Run(ctx, sub) })
	} else {
		logger.Warn("AUTH_EVENTS_QUEUE not set, provider approvals will not promote users")
	}

	server.Run(cfg.Port, r, logger, background...)
}

// purgeExpiredTokens removes expired refresh tokens once an hour.
func purgeExpiredTokens(ctx context.Context, repo *repository.GormUserRepository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpiredRefreshTokens(ctx, time.Now())
			if err != nil {
				logger.Warn("refresh token purge failed", zap.Error(err))
				continue
			}
			logger.Info("purged expired refresh tokens", zap.Int64("count", n))
		}
	}
}
