package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropertyDesk/internal/pkg/env"
)

const isolatedBillingTestRedisDB = 13

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       isolatedBillingTestRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint at %s (%v)", addr, err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestRedisCheckoutCache(t *testing.T) {
	client := newTestRedisClient(t)
	cache := NewRedisCheckoutCache(client)
	ctx := context.Background()
	key := CheckoutCacheKey("acct-1", "pro", "month")

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, key, "https://pay.test/1", time.Minute))
	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://pay.test/1", got)

	ttl, err := client.TTL(ctx, checkoutCachePrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestCheckoutCacheKey(t *testing.T) {
	assert.Equal(t, "acct-1:pro:year", CheckoutCacheKey("acct-1", "pro", "year"))
}
