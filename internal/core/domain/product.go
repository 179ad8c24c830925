package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int // available stock
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockAdjustment pairs a product with a quantity delta for
// DecrementStock/IncrementStock.
type StockAdjustment struct {
	ProductID string
	Quantity  int
}

// StockUpdate overwrites stock with an absolute value. Version must match
// the row's current version for the write to apply.
type StockUpdate struct {
	ProductID string
	Quantity  int
	Version   int
}
