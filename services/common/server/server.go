// Package server wires the middleware stack and lifecycle shared by every
// service binary.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/services/common/config"
	"github.com/yashrajoria/vm-marketplace/services/common/logger"
	"github.com/yashrajoria/vm-marketplace/services/common/middleware"
)

// NewLogger initializes the global logger, teeing to CloudWatch Logs when
// CLOUDWATCH_ENABLED=true.
func NewLogger(ctx context.Context, env, serviceName string) *zap.Logger {
	if !config.GetEnvBool("CLOUDWATCH_ENABLED", false) {
		return logger.Initialize(env).With(zap.String("service", serviceName))
	}

	log := logger.Initialize(env)
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Warn("CloudWatch logging disabled", zap.Error(err))
		return log.With(zap.String("service", serviceName))
	}
	cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, config.GetEnv("CLOUDWATCH_LOG_GROUP", ""), serviceName)
	if err != nil {
		log.Warn("CloudWatch logging disabled", zap.Error(err))
		return log.With(zap.String("service", serviceName))
	}
	return logger.InitializeWithWriter(env, cw).With(zap.String("service", serviceName))
}

// NewMetricsClient returns a CloudWatch metrics client, or nil when metrics are off.
func NewMetricsClient(ctx context.Context, log *zap.Logger) *awspkg.MetricsClient {
	if !config.GetEnvBool("METRICS_ENABLED", false) {
		return nil
	}
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Warn("CloudWatch metrics disabled", zap.Error(err))
		return nil
	}
	return awspkg.NewMetricsClient(awsCfg, config.GetEnv("CLOUDWATCH_NAMESPACE", ""), true)
}

// Options configures NewRouter.
type Options struct {
	ServiceName    string
	Logger         *zap.Logger
	Metrics        *awspkg.MetricsClient
	RequestTimeout time.Duration
}

// NewRouter returns a gin engine with recovery, request ids, logging,
// security headers, a request timeout, metrics, /health and /metrics.
func NewRouter(opts Options) *gin.Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	prom := middleware.NewPrometheusMetrics(opts.ServiceName)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MetricsMiddleware(opts.Metrics, opts.ServiceName))
	r.Use(prom.Middleware())

	r.GET("/health", middleware.Health(opts.ServiceName))
	r.GET("/metrics", prom.Handler())
	return r
}

// Run serves handler on port until SIGINT/SIGTERM, then cancels the
// background context and shuts the server down gracefully.
func Run(port string, handler http.Handler, log *zap.Logger, background ...func(ctx context.Context)) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, fn := range background {
		go fn(ctx)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()
	log.Info("Service started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited cleanly")
}
