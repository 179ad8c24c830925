package port

import (
	"context"
	"time"
)

type StockCache interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key whose request was rejected, so a
	// corrected retry with the same key is not refused as a duplicate.
	ReleaseIdempotency(ctx context.Context, key string) error

	// GetStock reads a cached availability entry; ok is false on a miss.
	GetStock(ctx context.Context, productID string) (quantity int, ok bool, err error)

	// SetStock caches an availability entry with the given TTL.
	SetStock(ctx context.Context, productID string, quantity int, ttl time.Duration) error

	// InvalidateStock drops cached entries after stock has changed.
	InvalidateStock(ctx context.Context, productIDs []string) error
}
