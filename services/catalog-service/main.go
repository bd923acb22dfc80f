package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	ddb "github.com/yashrajoria/vm-marketplace/pkg/dynamodb"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/config"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/controllers"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/models"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/routes"
	"github.com/yashrajoria/vm-marketplace/services/catalog-service/services"
	"github.com/yashrajoria/vm-marketplace/services/common/database"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
)

const serviceName = "catalog-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, serviceName)
	defer logger.Sync() //nolint:errcheck

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("Failed to parse REDIS_URL, falling back to default", zap.Error(err))
		redisOpts = &redis.Options{Addr: "localhost:6379"}
	}
	cacheClient := redis.NewClient(redisOpts)
	defer cacheClient.Close() //nolint:errcheck

	listingRepo, closeStore := openListingStore(ctx, cfg, logger)
	defer closeStore()
	if err := listingRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure listing indexes", zap.Error(err))
	}

	db, err := database.Open(cfg.Database, logger, &models.Review{}, &models.ProviderApplication{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	publisher, err := events.NewTopicPublisher(ctx, events.Config{
		Bus:          cfg.EventBus,
		Source:       serviceName,
		KafkaBrokers: events.ParseBrokers(cfg.KafkaBrokers),
	}, cfg.EventsTopic, logger)
	if err != nil {
		logger.Fatal("Failed to init event publisher", zap.Error(err))
	}
	defer publisher.Close() //nolint:errcheck

	var presigner services.Presigner
	if cfg.S3Bucket != "" {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			logger.Fatal("Failed to load AWS config", zap.Error(err))
		}
		presigner = awspkg.NewObjectPresigner(awsCfg, cfg.S3Bucket, cfg.S3PublicURL)
	}

	var uploader services.ImageUploader
	if cfg.CloudinaryURL != "" {
		// cloudinary.New reads the URL from the environment.
		_ = os.Setenv("CLOUDINARY_URL", cfg.CloudinaryURL)
		cld, err := services.NewCloudinaryUploader(cfg.ImageFolder)
		if err != nil {
			logger.Warn("Cloudinary disabled", zap.Error(err))
		} else {
			uploader = cld
		}
	}

	metrics := server.NewMetricsClient(ctx, logger)
	cache := controllers.NewCacheManager(cacheClient, metrics, logger)

	listingService := services.NewListingService(listingRepo, publisher, presigner, uploader, metrics, logger)
	reviewService := services.NewReviewService(repository.NewReviewRepository(db), listingRepo, logger)
	providerService := services.NewProviderService(repository.NewProviderRepository(db), publisher, logger)

	r := server.NewRouter(server.Options{ServiceName: serviceName, Logger: logger, Metrics: metrics})
	routes.RegisterRoutes(r,
		controllers.NewListingController(listingService, cache, logger),
		controllers.NewReviewController(reviewService, cache),
		controllers.NewProviderController(providerService),
	)

	server.Run(cfg.Port, r, logger)
}

func openListingStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ListingRepository, func()) {
	if cfg.Store == config.StoreDynamo {
		client, err := ddb.NewClient(ctx)
		if err != nil {
			logger.Fatal("Failed to create DynamoDB client", zap.Error(err))
		}
		logger.Info("Using DynamoDB listing store", zap.String("table", cfg.DynamoTable))
		return repository.NewDynamoListingRepository(client, cfg.DynamoTable), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		logger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}
	logger.Info("Using MongoDB listing store", zap.String("db", cfg.MongoDB))

	return repository.NewMongoListingRepository(client.Database(cfg.MongoDB)), func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Warn("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}
}
