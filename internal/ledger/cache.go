package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache serves stock level listings from Redis. Invalidation bumps a
// per-warehouse version counter, so stale keys simply age out via TTL.
// Concurrent misses for the same key collapse into one repository load.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) versionKey(warehouseID int64) string {
	return fmt.Sprintf("stock:ver:%d", warehouseID)
}

func (c *Cache) version(ctx context.Context, warehouseID int64) (int64, error) {
	ver, err := c.client.Get(ctx, c.versionKey(warehouseID)).Int64()
	if err == redis.Nil {
		// INCR on a missing key yields 1, so the unbumped version is 0.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) levelsKey(filter StockLevelFilter, ver int64) string {
	return fmt.Sprintf("stock:levels:%d:%d:%d:v%d", filter.WarehouseID, filter.ProductID, filter.LocationID, ver)
}

// Levels returns cached stock levels or populates the cache via load.
func (c *Cache) Levels(ctx context.Context, filter StockLevelFilter, load func(context.Context) ([]StockLevel, error)) ([]StockLevel, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	ver, err := c.version(ctx, filter.WarehouseID)
	if err != nil {
		return load(ctx)
	}
	key := c.levelsKey(filter, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var levels []StockLevel
		if err := json.Unmarshal(payload, &levels); err == nil {
			return levels, nil
		}
	}

	result := c.group.DoChan(key, func() (any, error) {
		levels, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(levels); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return levels, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]StockLevel), nil
	}
}

// Invalidate bumps the warehouse version so subsequent reads miss.
func (c *Cache) Invalidate(ctx context.Context, warehouseID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(warehouseID)).Err()
}
