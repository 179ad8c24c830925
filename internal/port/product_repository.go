package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type ProductRepository interface {
	// FindAllByID returns the subset of products that exist for the given ids.
	FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error)

	// UpdateQuantity overwrites stock with absolute values, with a version
	// check for optimistic locking on each row.
	UpdateQuantity(ctx context.Context, updates []domain.StockUpdate) error

	// DecrementStock atomically decreases stock for every adjustment, guarded
	// so no row can go negative. It returns the ids whose guard failed; a nil
	// slice means every decrement was applied. Partial application is never
	// visible: one guard failure rolls back the whole batch.
	DecrementStock(ctx context.Context, decs []domain.StockAdjustment) ([]string, error)

	// IncrementStock restores stock (for rollback on failure).
	IncrementStock(ctx context.Context, incs []domain.StockAdjustment) error
}
