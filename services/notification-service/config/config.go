package config

import (
	"context"
	"fmt"
	"time"

	common "github.com/yashrajoria/vm-marketplace/services/common/config"
)

const (
	EmailModeLog  = "log"
	EmailModeSMTP = "smtp"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Config struct {
	Port     string
	Env      string
	Database common.DatabaseConfig

	EmailMode string
	SMTP      SMTPConfig
	// AppURL is linked from emails.
	AppURL       string
	SendAttempts int
	RetryBackoff time.Duration

	EventBus          string
	KafkaBrokers      string
	NotificationQueue string
}

func LoadConfig() (*Config, error) {
	common.LoadDotEnv()

	cfg := &Config{
		Port:      common.GetEnv("PORT", "8086"),
		Env:       common.GetEnv("ENV", "development"),
		Database:  common.LoadDatabaseConfig("notifications"),
		EmailMode: common.GetEnv("NOTIFY_EMAIL_MODE", EmailModeLog),
		SMTP: SMTPConfig{
			Host:     common.GetEnv("SMTP_HOST", ""),
			Port:     common.GetEnv("SMTP_PORT", "587"),
			Username: common.GetEnv("SMTP_USER", ""),
			Password: common.GetEnv("SMTP_PASS", ""),
			From:     common.GetEnv("SMTP_FROM", ""),
		},
		AppURL:            common.GetEnv("APP_URL", "http://localhost:3000"),
		SendAttempts:      common.GetEnvInt("NOTIFY_SEND_ATTEMPTS", 3),
		RetryBackoff:      common.GetEnvDuration("NOTIFY_RETRY_BACKOFF", time.Second),
		EventBus:          common.GetEnv("EVENT_BUS", "sns"),
		KafkaBrokers:      common.GetEnv("KAFKA_BROKERS", ""),
		NotificationQueue: common.GetEnv("NOTIFICATION_QUEUE_URL", ""),
	}

	if err := common.ApplySecrets(context.Background(), map[string]*string{
		"DB_PASSWORD": &cfg.Database.Password,
		"SMTP_PASS":   &cfg.SMTP.Password,
	}); err != nil {
		return nil, fmt.Errorf("secrets override: %w", err)
	}

	switch cfg.EmailMode {
	case EmailModeLog:
	case EmailModeSMTP:
		if err := common.Require(map[string]string{
			"SMTP_HOST": cfg.SMTP.Host,
			"SMTP_USER": cfg.SMTP.Username,
			"SMTP_PASS": cfg.SMTP.Password,
		}); err != nil {
			return nil, err
		}
		if cfg.SMTP.From == "" {
			cfg.SMTP.From = cfg.SMTP.Username
		}
	default:
		return nil, fmt.Errorf("unknown NOTIFY_EMAIL_MODE %q", cfg.EmailMode)
	}
	if cfg.SendAttempts < 1 {
		cfg.SendAttempts = 1
	}
	return cfg, nil
}
