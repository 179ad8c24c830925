package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderRepository interface {
	// Create assigns id and timestamps and persists the order with its line
	// items atomically, returning the stored form.
	Create(ctx context.Context, order domain.Order) (*domain.Order, error)

	// FindByID returns nil without error when the order does not exist.
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}
