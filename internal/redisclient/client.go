package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"venue-order-service/internal/models"

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

// AcquireLock acquires the per-intent confirmation lock. Best-effort: it
// narrows the window in which two confirmations for the same intent can run
// concurrently, but the post-status conditional write and the capture
// idempotency key remain the authoritative guards.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a confirmation lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// CacheOrders caches a user's recent orders
func (c *Client) CacheOrders(ctx context.Context, userID string, orders []models.Order, ttl time.Duration) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("orders:%s", userID), data, ttl).Err()
}

// GetCachedOrders retrieves a user's cached recent orders.
// Returns (nil, nil) on a cache miss.
func (c *Client) GetCachedOrders(ctx context.Context, userID string) ([]models.Order, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("orders:%s", userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// InvalidateOrders drops a user's cached order list after a write
func (c *Client) InvalidateOrders(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("orders:%s", userID)).Err()
}
