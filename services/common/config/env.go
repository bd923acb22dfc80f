// Package config holds the environment helpers shared by every service's
// LoadConfig.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
)

// LoadDotEnv loads a .env file when one exists. Missing files are ignored.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func GetEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func GetEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Require returns an error naming every key whose value is empty.
func Require(values map[string]string) error {
	var missing []string
	for k, v := range values {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
}

// ApplySecrets overrides the targets with values from the JSON secret named by
// AWS_SECRET_NAME when AWS_USE_SECRETS=true. Keys absent from the secret keep
// their env values.
func ApplySecrets(ctx context.Context, targets map[string]*string) error {
	if !GetEnvBool("AWS_USE_SECRETS", false) {
		return nil
	}
	name := GetEnv("AWS_SECRET_NAME", "vm-marketplace/app")

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	values, err := awspkg.NewSecretsClient(awsCfg).GetSecretMap(ctx, name)
	if err != nil {
		return err
	}
	for key, dst := range targets {
		if v, ok := values[key]; ok && v != "" {
			*dst = v
		}
	}
	return nil
}
