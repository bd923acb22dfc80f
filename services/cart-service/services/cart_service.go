package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/vm-marketplace/pkg/aws"
	"github.com/yashrajoria/vm-marketplace/pkg/catalog"
	"github.com/yashrajoria/vm-marketplace/pkg/events"
	"github.com/yashrajoria/vm-marketplace/services/cart-service/models"
	apperrors "github.com/yashrajoria/vm-marketplace/services/common/errors"
)

const listingAvailable = "available"

// CartStore persists carts and checkout idempotency keys.
type CartStore interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, userID string) error
	ClaimIdempotency(ctx context.Context, userID, key, checkoutID string, ttl time.Duration) (string, bool, error)
	ReleaseIdempotency(ctx context.Context, userID, key string) error
}

type AddItemInput struct {
	VMID     string `json:"vm_id" binding:"required"`
	Quantity int    `json:"quantity"`
	Region   string `json:"region"`
}

type UpdateItemInput struct {
	Quantity *int   `json:"quantity" binding:"required"`
	Region   string `json:"region"`
}

// CheckoutResult is returned by Checkout. Replayed is set when the
// idempotency key had already been used.
type CheckoutResult struct {
	CheckoutID string `json:"checkout_id"`
	Replayed   bool   `json:"-"`
}

type CartService interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	AddItem(ctx context.Context, userID string, in AddItemInput) (*models.Cart, error)
	UpdateItem(ctx context.Context, userID, vmID string, in UpdateItemInput) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, vmID, region string) (*models.Cart, error)
	Clear(ctx context.Context, userID string) error
	Checkout(ctx context.Context, userID, idempotencyKey string) (*CheckoutResult, error)
}

type cartService struct {
	store          CartStore
	catalog        catalog.Client
	publisher      events.Publisher
	metrics        *awspkg.MetricsClient
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

func NewCartService(
	store CartStore,
	listings catalog.Client,
	publisher events.Publisher,
	metrics *awspkg.MetricsClient,
	idempotencyTTL time.Duration,
	logger *zap.Logger,
) CartService {
	return &cartService{
		store:          store,
		catalog:        listings,
		publisher:      publisher,
		metrics:        metrics,
		idempotencyTTL: idempotencyTTL,
		logger:         logger,
	}
}

func (s *cartService) load(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	if cart == nil {
		return models.NewCart(userID), nil
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

func (s *cartService) save(ctx context.Context, cart *models.Cart) error {
	cart.Recalculate()
	if err := s.store.SaveCart(ctx, cart); err != nil {
		s.logger.Error("failed to save cart", zap.String("user_id", cart.UserID), zap.Error(err))
		return apperrors.Internal(err)
	}
	return nil
}

func (s *cartService) Get(ctx context.Context, userID string) (*models.Cart, error) {
	return s.load(ctx, userID)
}

// AddItem prices the line from the catalog and merges it into an existing
// line for the same listing and region.
func (s *cartService) AddItem(ctx context.Context, userID string, in AddItemInput) (*models.Cart, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 1 || in.Quantity > models.MaxLineQuantity {
		return nil, apperrors.BadRequest("Quantity must be between 1 and 10")
	}

	listing, err := s.catalog.GetListing(ctx, in.VMID)
	if err != nil {
		if errors.Is(err, catalog.ErrListingNotFound) {
			return nil, apperrors.ErrListingNotFound
		}
		s.logger.Error("catalog lookup failed", zap.String("vm_id", in.VMID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if listing.Status != listingAvailable {
		return nil, apperrors.ErrListingUnavailable
	}

	region := strings.TrimSpace(in.Region)
	if region == "" && len(listing.Regions) > 0 {
		region = listing.Regions[0]
	}
	if region != "" && len(listing.Regions) > 0 && !slices.Contains(listing.Regions, region) {
		return nil, apperrors.BadRequest("Region is not offered for this VM")
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if i := cart.Line(listing.ID, region); i >= 0 {
		qty := cart.Items[i].Quantity + in.Quantity
		if qty > models.MaxLineQuantity {
			return nil, apperrors.BadRequest("Quantity must be between 1 and 10")
		}
		cart.Items[i].Quantity = qty
		cart.Items[i].Name = listing.Name
		cart.Items[i].Price = listing.Price
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			VMID:     listing.ID,
			Name:     listing.Name,
			Region:   region,
			Quantity: in.Quantity,
			Price:    listing.Price,
		})
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) UpdateItem(ctx context.Context, userID, vmID string, in UpdateItemInput) (*models.Cart, error) {
	if in.Quantity == nil || *in.Quantity < 0 || *in.Quantity > models.MaxLineQuantity {
		return nil, apperrors.BadRequest("Quantity must be between 0 and 10")
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := cart.Find(vmID, strings.TrimSpace(in.Region))
	if i < 0 {
		return nil, apperrors.NotFound("Item not in cart")
	}

	if *in.Quantity == 0 {
		cart.Remove(i)
	} else {
		cart.Items[i].Quantity = *in.Quantity
	}
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, vmID, region string) (*models.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := cart.Find(vmID, strings.TrimSpace(region))
	if i < 0 {
		return nil, apperrors.NotFound("Item not in cart")
	}
	cart.Remove(i)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	if err := s.store.DeleteCart(ctx, userID); err != nil {
		s.logger.Error("failed to clear cart", zap.String("user_id", userID), zap.Error(err))
		return apperrors.Internal(err)
	}
	return nil
}

// Checkout publishes cart.checked_out and empties the cart. With an
// idempotency key, a repeated call returns the first checkout id.
func (s *cartService) Checkout(ctx context.Context, userID, idempotencyKey string) (*CheckoutResult, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	checkoutID := uuid.NewString()
	if idempotencyKey != "" {
		existing, claimed, err := s.store.ClaimIdempotency(ctx, userID, idempotencyKey, checkoutID, s.idempotencyTTL)
		if err != nil {
			s.logger.Error("idempotency claim failed", zap.String("user_id", userID), zap.Error(err))
			return nil, apperrors.Internal(err)
		}
		if !claimed {
			return &CheckoutResult{CheckoutID: existing, Replayed: true}, nil
		}
	}

	release := func() {
		if idempotencyKey == "" {
			return
		}
		if err := s.store.ReleaseIdempotency(ctx, userID, idempotencyKey); err != nil {
			s.logger.Warn("failed to release idempotency key", zap.Error(err))
		}
	}

	if len(cart.Items) == 0 {
		release()
		return nil, apperrors.BadRequest("Cart is empty")
	}
	cart.Recalculate()

	if err := s.publisher.Publish(ctx, events.CartCheckedOut, models.CheckoutEvent{
		CheckoutID: checkoutID,
		UserID:     userID,
		Items:      cart.Items,
		Total:      cart.Total,
	}); err != nil {
		release()
		s.logger.Error("failed to publish checkout", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}

	if err := s.store.DeleteCart(ctx, userID); err != nil {
		s.logger.Warn("checkout published but cart not cleared", zap.String("checkout_id", checkoutID), zap.Error(err))
	}
	_ = s.metrics.RecordCount(ctx, awspkg.MetricCartCheckouts, nil)

	s.logger.Info("cart checked out",
		zap.String("checkout_id", checkoutID),
		zap.String("user_id", userID),
		zap.Int("items", len(cart.Items)),
		zap.Float64("total", cart.Total),
	)
	return &CheckoutResult{CheckoutID: checkoutID}, nil
}
