package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCacheLevelsRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) ([]StockLevel, error) {
		loads++
		return []StockLevel{{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: int64(40 + loads)}}, nil
	}
	filter := StockLevelFilter{WarehouseID: 1}

	levels, err := cache.Levels(ctx, filter, load)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	require.EqualValues(t, 41, levels[0].Quantity)
	require.Equal(t, 1, loads)

	// second read is served from redis
	levels, err = cache.Levels(ctx, filter, load)
	require.NoError(t, err)
	require.EqualValues(t, 41, levels[0].Quantity)
	require.Equal(t, 1, loads)

	require.NoError(t, cache.Invalidate(ctx, 1))

	levels, err = cache.Levels(ctx, filter, load)
	require.NoError(t, err)
	require.EqualValues(t, 42, levels[0].Quantity)
	require.Equal(t, 2, loads)
}

func TestCacheInvalidateScopedToWarehouse(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	loads := map[int64]int{}
	loader := func(warehouseID int64) func(context.Context) ([]StockLevel, error) {
		return func(context.Context) ([]StockLevel, error) {
			loads[warehouseID]++
			return []StockLevel{}, nil
		}
	}

	_, err := cache.Levels(ctx, StockLevelFilter{WarehouseID: 1}, loader(1))
	require.NoError(t, err)
	_, err = cache.Levels(ctx, StockLevelFilter{WarehouseID: 2}, loader(2))
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, 1))

	_, err = cache.Levels(ctx, StockLevelFilter{WarehouseID: 1}, loader(1))
	require.NoError(t, err)
	_, err = cache.Levels(ctx, StockLevelFilter{WarehouseID: 2}, loader(2))
	require.NoError(t, err)

	require.Equal(t, 2, loads[1])
	require.Equal(t, 1, loads[2])
}
