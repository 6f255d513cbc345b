package services

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const productCacheKeyPrefix = "nacento:product_id:"

// ProductCache is an optional Redis cache of SKU to entity id lookups used by
// the bulk path. A nil *ProductCache disables caching; only positive hits are
// cached so a deleted product cannot be shadowed longer than the TTL.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates a cache around an existing Redis client.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{client: client, ttl: ttl}
}

// GetEntityID returns the cached entity id for a SKU, if present.
func (c *ProductCache) GetEntityID(ctx context.Context, sku string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	v, err := c.client.Get(ctx, productCacheKeyPrefix+sku).Result()
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SetEntityID caches a resolved SKU. Failures are ignored; the cache is an
// optimization only.
func (c *ProductCache) SetEntityID(ctx context.Context, sku string, entityID int64) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Set(ctx, productCacheKeyPrefix+sku, strconv.FormatInt(entityID, 10), c.ttl)
}
