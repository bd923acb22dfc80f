// Command lambda runs the instance-service event consumer as an SQS-triggered
// AWS Lambda function.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/yashrajoria/vm-marketplace/services/common/server"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/app"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	logger := server.NewLogger(ctx, cfg.Env, app.ServiceName+"-lambda")
	defer logger.Sync() //nolint:errcheck

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialise service", zap.Error(err))
	}
	defer a.Close() //nolint:errcheck

	lambda.Start(a.Consumer.HandleSQSBatch)
}
