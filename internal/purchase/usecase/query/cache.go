package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

// ErrCacheMiss is returned by a PurchaseCache that has no entry for an id
var ErrCacheMiss = errors.New("purchase not cached")

// PurchaseCache stores purchase records by id. Records never change once
// written, so entries only expire.
type PurchaseCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Purchase, error)
	Set(ctx context.Context, purchase *domain.Purchase) error
}

// RedisPurchaseCache is a PurchaseCache backed by Redis
type RedisPurchaseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPurchaseCache creates a new Redis cache with the given entry TTL
func NewRedisPurchaseCache(client *redis.Client, ttl time.Duration) *RedisPurchaseCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPurchaseCache{client: client, ttl: ttl}
}

func cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("purchase:%s", id)
}

// Get returns the cached record or ErrCacheMiss
func (c *RedisPurchaseCache) Get(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var purchase domain.Purchase
	if err := json.Unmarshal(data, &purchase); err != nil {
		return nil, fmt.Errorf("failed to decode cached purchase: %w", err)
	}
	return &purchase, nil
}

// Set caches the record under its id
func (c *RedisPurchaseCache) Set(ctx context.Context, purchase *domain.Purchase) error {
	data, err := json.Marshal(purchase)
	if err != nil {
		return fmt.Errorf("failed to encode purchase: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(purchase.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}
