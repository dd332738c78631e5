package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkoutCachePrefix = "entitlement:checkout:"

// CheckoutCache remembers a freshly issued hosted checkout so repeated
// clicks reuse it instead of opening a second payment.
type CheckoutCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, redirectURL string, ttl time.Duration) error
}

type RedisCheckoutCache struct {
	client *redis.Client
}

func NewRedisCheckoutCache(client *redis.Client) *RedisCheckoutCache {
	return &RedisCheckoutCache{client: client}
}

func (c *RedisCheckoutCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, checkoutCachePrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCheckoutCache) Set(ctx context.Context, key, redirectURL string, ttl time.Duration) error {
	return c.client.Set(ctx, checkoutCachePrefix+key, redirectURL, ttl).Err()
}

// CheckoutCacheKey identifies a pending checkout for one account and plan.
func CheckoutCacheKey(accountID, planID, interval string) string {
	return strings.Join([]string{accountID, planID, interval}, ":")
}
