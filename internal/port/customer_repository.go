package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CustomerRepository interface {
	// FindByID returns nil without error when the customer does not exist.
	FindByID(ctx context.Context, id string) (*domain.Customer, error)
}
