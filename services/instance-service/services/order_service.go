package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/models"
	"github.com/yashrajoria/vm-marketplace/services/instance-service/repository"
)

const defaultCurrency = "usd"

type OrderResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService owns the order lifecycle from checkout to deployment.
type OrderService struct {
	orders          repository.OrderRepository
	instances       repository.InstanceRepository
	deployer        *Deployer
	paymentRequests events.Publisher
	metrics         *awspkg.MetricsClient
	logger          *zap.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	instances repository.InstanceRepository,
	deployer *Deployer,
	paymentRequests events.Publisher,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:          orders,
		instances:       instances,
		deployer:        deployer,
		paymentRequests: paymentRequests,
		metrics:         metrics,
		logger:          logger,
	}
}

func toCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

// HandleCheckout creates a pending_payment order for a cart checkout and asks
// the payment-service for a Checkout Session. A repeated checkout id only
// re-sends the payment request while no session has been announced.
func (s *OrderService) HandleCheckout(ctx context.Context, ev models.CheckoutEvent) error {
	if ev.CheckoutID == "" || ev.UserID == "" || len(ev.Items) == 0 {
		s.logger.Warn("dropping incomplete checkout event", zap.String("checkout_id", ev.CheckoutID))
		return nil
	}

	order := &models.Order{
		ID:         uuid.New(),
		UserID:     ev.UserID,
		CheckoutID: ev.CheckoutID,
		Status:     models.OrderPendingPayment,
		Currency:   defaultCurrency,
	}
	for _, item := range ev.Items {
		order.Amount += toCents(item.Price) * int64(item.Quantity)
		order.Items = append(order.Items, models.OrderItem{
			ID:       uuid.New(),
			OrderID:  order.ID,
			VMID:     item.VMID,
			Name:     item.Name,
			Region:   item.Region,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	err := s.orders.Create(ctx, order)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, ferr := s.orders.FindByCheckoutID(ctx, ev.CheckoutID)
		if ferr != nil {
			return ferr
		}
		if existing.Status != models.OrderPendingPayment || existing.CheckoutURL != "" {
			s.logger.Info("checkout already processed", zap.String("checkout_id", ev.CheckoutID))
			return nil
		}
		order = existing
	} else if err != nil {
		return fmt.Errorf("create order: %w", err)
	} else {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCreated, nil)
		s.logger.Info("order created",
			zap.String("order_id", order.ID.String()),
			zap.String("checkout_id", ev.CheckoutID),
			zap.Int64("amount", order.Amount),
		)
	}

	req := models.PaymentRequest{
		OrderID:  order.ID.String(),
		UserID:   order.UserID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, models.CheckoutItem{
			VMID:     item.VMID,
			Name:     item.Name,
			Region:   item.Region,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	if err := s.paymentRequests.Publish(ctx, events.PaymentRequested, req); err != nil {
		return fmt.Errorf("send payment request: %w", err)
	}
	return nil
}

// HandleCheckoutCreated stores the hosted checkout URL on the order.
func (s *OrderService) HandleCheckoutCreated(ctx context.Context, ev models.CheckoutCreatedEvent) error {
	orderID, err := uuid.Parse(ev.OrderID)
	if err != nil {
		s.logger.Warn("dropping checkout_created with invalid order id", zap.String("order_id", ev.OrderID))
		return nil
	}
	err = s.orders.SetCheckout(ctx, orderID, ev.PaymentID, ev.CheckoutURL)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("checkout_created for unknown order", zap.String("order_id", ev.OrderID))
		return nil
	}
	return err
}

// HandlePaymentSucceeded marks the order paid, creates its instances and
// deploys every instance still pending. Redelivery resumes instances that a
// transient error handed back, and takes over claims that went stale. While
// another delivery still deploys part of the order an error is returned so
// the message comes back to settle it.
func (s *OrderService) HandlePaymentSucceeded(ctx context.Context, ev models.PaymentEvent) error {
	order, err := s.orderForPayment(ctx, ev)
	if err != nil || order == nil {
		return err
	}

	if order.Status == models.OrderPendingPayment {
		if _, err := s.orders.Transition(ctx, order.ID, []string{models.OrderPendingPayment}, models.OrderPaid,
			map[string]interface{}{"payment_id": ev.PaymentID}); err != nil {
			return err
		}
		order.Status = models.OrderPaid
	}
	if order.IsFinal() {
		s.logger.Info("payment for settled order ignored", zap.String("order_id", order.ID.String()))
		return nil
	}

	instances, err := s.instances.ListByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if len(instances) == 0 {
		instances = newInstances(order)
		if err := s.instances.CreateBatch(ctx, instances); err != nil {
			return fmt.Errorf("create instances: %w", err)
		}
	}

	if _, err := s.orders.Transition(ctx, order.ID, []string{models.OrderPaid}, models.OrderProvisioning, nil); err != nil {
		return err
	}

	for i := range instances {
		if !s.deployer.Deployable(&instances[i]) {
			continue
		}
		if err := s.deployer.Deploy(ctx, &instances[i], ev.PaymentID); err != nil {
			return fmt.Errorf("deploy instance %s: %w", instances[i].ID, err)
		}
	}
	if err := s.settle(ctx, order.ID, instances); err != nil {
		return err
	}

	for _, inst := range instances {
		if inst.Status == models.InstancePending || inst.Status == models.InstanceProvisioning {
			return fmt.Errorf("order %s: %w", order.ID, errDeploymentInProgress)
		}
	}
	return nil
}

// orderForPayment resolves the order a payment belongs to. Payments made
// through a direct intent carry no order, so one is created for them.
func (s *OrderService) orderForPayment(ctx context.Context, ev models.PaymentEvent) (*models.Order, error) {
	if ev.OrderID != nil {
		orderID, err := uuid.Parse(*ev.OrderID)
		if err != nil {
			s.logger.Warn("dropping payment event with invalid order id", zap.String("order_id", *ev.OrderID))
			return nil, nil
		}
		order, err := s.orders.FindByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("payment for unknown order", zap.String("order_id", *ev.OrderID))
			return nil, nil
		}
		return order, err
	}

	if ev.VMID == "" || ev.UserID == "" || ev.PaymentID == "" {
		s.logger.Warn("dropping payment event without order or listing", zap.String("payment_id", ev.PaymentID))
		return nil, nil
	}
	quantity := ev.Quantity
	if quantity < 1 {
		quantity = 1
	}
	currency := ev.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	order := &models.Order{
		ID:         uuid.New(),
		UserID:     ev.UserID,
		CheckoutID: "payment:" + ev.PaymentID,
		Status:     models.OrderPaid,
		Amount:     ev.Amount,
		Currency:   currency,
		PaymentID:  ev.PaymentID,
	}
	order.Items = []models.OrderItem{{
		ID:       uuid.New(),
		OrderID:  order.ID,
		VMID:     ev.VMID,
		Region:   ev.Region,
		Quantity: quantity,
		Price:    float64(ev.Amount) / 100 / float64(quantity),
	}}

	err := s.orders.Create(ctx, order)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.orders.FindByCheckoutID(ctx, order.CheckoutID)
	}
	if err != nil {
		return nil, err
	}
	_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCreated, nil)
	return order, nil
}

func newInstances(order *models.Order) []models.Instance {
	var out []models.Instance
	for _, item := range order.Items {
		for n := 1; n <= item.Quantity; n++ {
			name := item.Name
			if name != "" && item.Quantity > 1 {
				name = fmt.Sprintf("%s #%d", name, n)
			}
			out = append(out, models.Instance{
				ID:             uuid.New(),
				UserID:         order.UserID,
				OrderID:        order.ID,
				ListingID:      item.VMID,
				Name:           name,
				Region:         item.Region,
				Status:         models.InstancePending,
				DeploymentStep: models.StepValidating,
			})
		}
	}
	return out
}

// settle completes the order once every instance runs or was deleted, fails
// it when any instance failed, and cancels it when all were deleted.
func (s *OrderService) settle(ctx context.Context, orderID uuid.UUID, instances []models.Instance) error {
	running, failed, terminated := 0, 0, 0
	for _, inst := range instances {
		switch inst.Status {
		case models.InstanceRunning:
			running++
		case models.InstanceFailed:
			failed++
		case models.InstanceTerminated:
			terminated++
		}
	}

	from := []string{models.OrderPaid, models.OrderProvisioning}
	switch {
	case failed > 0:
		changed, err := s.orders.Transition(ctx, orderID, from, models.OrderFailed, nil)
		if changed {
			_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersFailed, nil)
			s.logger.Warn("order failed", zap.String("order_id", orderID.String()), zap.Int("failed_instances", failed))
		}
		return err
	case terminated == len(instances):
		changed, err := s.orders.Transition(ctx, orderID, from, models.OrderCanceled, nil)
		if changed {
			s.logger.Info("order canceled, all instances deleted", zap.String("order_id", orderID.String()))
		}
		return err
	case running+terminated == len(instances):
		changed, err := s.orders.Transition(ctx, orderID, from, models.OrderCompleted,
			map[string]interface{}{"completed_at": time.Now()})
		if changed {
			_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersCompleted, nil)
			s.logger.Info("order completed", zap.String("order_id", orderID.String()), zap.Int("instances", running))
		}
		return err
	}
	return nil
}

// HandlePaymentFailed fails an order still awaiting payment.
func (s *OrderService) HandlePaymentFailed(ctx context.Context, ev models.PaymentEvent) error {
	if ev.OrderID == nil {
		s.logger.Info("direct payment failed", zap.String("payment_id", ev.PaymentID), zap.String("user_id", ev.UserID))
		return nil
	}
	orderID, err := uuid.Parse(*ev.OrderID)
	if err != nil {
		return nil
	}
	changed, err := s.orders.Transition(ctx, orderID, []string{models.OrderPendingPayment}, models.OrderFailed,
		map[string]interface{}{"payment_id": ev.PaymentID})
	if err != nil {
		return err
	}
	if changed {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricOrdersFailed, nil)
		s.logger.Info("order payment failed", zap.String("order_id", orderID.String()))
	}
	return nil
}

// GetUserOrders retrieves paginated orders for a specific user
func (s *OrderService) GetUserOrders(ctx context.Context, userID string, page, limit int) (*OrderResponse, error) {
	orders, total, err := s.orders.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		s.logger.Error("failed to fetch orders", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}

	return &OrderResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}, nil
}

// GetOrderByID returns one of the user's orders with its checkout URL.
func (s *OrderService) GetOrderByID(ctx context.Context, userID string, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByIDAndUserID(ctx, orderID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return order, nil
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
