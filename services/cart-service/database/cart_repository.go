package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yashrajoria/vm-marketplace/services/cart-service/models"
)

type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

func CartKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

func IdempotencyKey(userID, key string) string {
	return "idem:checkout:" + userID + ":" + key
}

// GetCart returns nil when the user has no cart.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, CartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// SaveCart writes the cart and refreshes its TTL.
func (r *CartRepository) SaveCart(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, CartKey(cart.UserID), data, r.ttl).Err()
}

func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	return r.client.Del(ctx, CartKey(userID)).Err()
}

// ClaimIdempotency stores checkoutID under key unless the key is already
// taken, in which case the stored checkout id is returned with claimed=false.
func (r *CartRepository) ClaimIdempotency(ctx context.Context, userID, key, checkoutID string, ttl time.Duration) (string, bool, error) {
	k := IdempotencyKey(userID, key)
	ok, err := r.client.SetNX(ctx, k, checkoutID, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return checkoutID, true, nil
	}
	existing, err := r.client.Get(ctx, k).Result()
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

// ReleaseIdempotency forgets a claim whose checkout did not complete.
func (r *CartRepository) ReleaseIdempotency(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, IdempotencyKey(userID, key)).Err()
}
