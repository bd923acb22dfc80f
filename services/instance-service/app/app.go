// Package app wires the instance-service for both the HTTP server and the
// Lambda entrypoint.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/common/database"
	"github.com/yashrajoria/vm-marketplace/services/common/server"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/config"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/consumers"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/provisioner"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/repository"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/services"
)

const ServiceName = "instance-service"

type App struct {
	DB        *gorm.DB
	Metrics   *awspkg.MetricsClient
	Events    events.Config
	Orders    *services.OrderService
	Instances services.InstanceService
	Consumer  *consumers.EventConsumer

	closers []func() error
}

func NewProvisioner(cfg *config.Config) provisioner.Provisioner {
	if cfg.ProvisionerMode == config.ProvisionerHTTP {
		return provisioner.NewHTTPProvisioner(cfg.ProvisionerURL, cfg.ProvisionerToken, cfg.ProvisionerTimeout)
	}
	return provisioner.NewSimulated(0)
}

func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}

	db, err := database.Open(cfg.Database, logger,
		&models.Order{}, &models.OrderItem{}, &models.Instance{}, &models.DeploymentEvent{})
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error { return database.Close(db) })

	a.Events = events.Config{
		Bus:          cfg.EventBus,
		Source:       ServiceName,
		KafkaBrokers: events.ParseBrokers(cfg.KafkaBrokers),
		KafkaGroupID: ServiceName,
	}
	instanceEvents, err := events.NewTopicPublisher(ctx, a.Events, cfg.EventsTopic, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, instanceEvents.Close)

	paymentRequests, err := events.NewQueuePublisherFor(ctx, a.Events, cfg.PaymentRequestQueue, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, paymentRequests.Close)

	a.Metrics = server.NewMetricsClient(ctx, logger)

	orderRepo := repository.NewGormOrderRepository(db)
	instanceRepo := repository.NewGormInstanceRepository(db)
	prov := NewProvisioner(cfg)

	deployer := services.NewDeployer(instanceRepo, catalog.NewClient(cfg.CatalogURL), prov, instanceEvents, a.Metrics, logger)
	a.Orders = services.NewOrderService(orderRepo, instanceRepo, deployer, paymentRequests, a.Metrics, logger)
	a.Instances = services.NewInstanceService(instanceRepo, prov, logger)
	a.Consumer = consumers.NewEventConsumer(a.Orders, logger)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
