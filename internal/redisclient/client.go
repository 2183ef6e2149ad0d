package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-core/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetIdempotentOrder maps a client idempotency key to its order ID with
// a TTL, as a fast path in front of the database's unique key
func (c *Client) SetIdempotentOrder(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), orderID, ttl).Err()
}

// GetIdempotentOrder returns the order ID previously stored for an
// idempotency key, if any
func (c *Client) GetIdempotentOrder(ctx context.Context, key string) (string, bool, error) {
	orderID, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return orderID, true, nil
}

// CacheCheckoutParams stores the gateway checkout params for a pending
// order until it expires
func (c *Client) CacheCheckoutParams(ctx context.Context, orderID string, params *models.CheckoutParams, ttl time.Duration) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("checkout:%s", orderID), data, ttl).Err()
}

// GetCheckoutParams retrieves cached checkout params for a pending order
func (c *Client) GetCheckoutParams(ctx context.Context, orderID string) (*models.CheckoutParams, bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("checkout:%s", orderID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var params models.CheckoutParams
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, false, err
	}
	return &params, true, nil
}

// AcquireLock acquires a best-effort distributed lock. Verification
// correctness does not depend on it; the conditional order write does
// the real serialization.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
