package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix       = "stock:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// RedisAdapter is the request fast path: SETNX-based request deduplication
// and a short-lived availability cache in front of the product table.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID string) (int, bool, error) {
	quantity, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return quantity, true, nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int, ttl time.Duration) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, ttl).Err()
}

func (r *RedisAdapter) InvalidateStock(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = stockKeyPrefix + id
	}
	return r.client.Del(ctx, keys...).Err()
}
