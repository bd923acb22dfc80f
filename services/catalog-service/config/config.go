package config

import (
	"context"
	"fmt"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

const (
	StoreMongo  = "mongo"
	StoreDynamo = "dynamodb"
)

// Config holds all environment variables for the catalog-service.
type Config struct {
	Port          string
	Env           string
	Store         string
	MongoURL      string
	MongoDB       string
	DynamoTable   string
	RedisURL      string
	Database      common.DatabaseConfig
	S3Bucket      string
	S3PublicURL   string
	CloudinaryURL string
	ImageFolder   string
	EventBus      string
	KafkaBrokers  string
	EventsTopic   string
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:          common.GetEnv("PORT", "8082"),
		Env:           common.GetEnv("ENV", "development"),
		Store:         common.GetEnv("CATALOG_STORE", StoreMongo),
		MongoURL:      common.GetEnv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDB:       common.GetEnv("MONGO_DB", "catalog"),
		DynamoTable:   common.GetEnv("DDB_TABLE_LISTINGS", "Listings"),
		RedisURL:      common.GetEnv("REDIS_URL", "redis://localhost:6379/0"),
		Database:      common.LoadDatabaseConfig("catalog"),
		S3Bucket:      common.GetEnv("AWS_S3_BUCKET", ""),
		S3PublicURL:   common.GetEnv("AWS_S3_PUBLIC_URL", ""),
		CloudinaryURL: common.GetEnv("CLOUDINARY_URL", ""),
		ImageFolder:   common.GetEnv("CLOUDINARY_FOLDER", "vm-marketplace/listings"),
		EventBus:      common.GetEnv("EVENT_BUS", "sns"),
		KafkaBrokers:  common.GetEnv("KAFKA_BROKERS", ""),
		EventsTopic:   common.GetEnv("CATALOG_EVENTS_TOPIC", ""),
	}

	if err := common.ApplySecrets(context.Background(), map[string]*string{
		"DB_PASSWORD":    &cfg.Database.Password,
		"CLOUDINARY_URL": &cfg.CloudinaryURL,
	}); err != nil {
		return nil, fmt.Errorf("secrets override: %w", err)
	}

	switch cfg.Store {
	case StoreMongo, StoreDynamo:
	default:
		return nil, fmt.Errorf("unsupported CATALOG_STORE %q", cfg.Store)
	}
	return cfg, nil
}
