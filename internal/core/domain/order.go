package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderLineRequest is what the customer asks for: a product and how many.
type OrderLineRequest struct {
	ProductID string
	Quantity  int
}

// OrderLine is a priced line item. Price is snapshotted from the catalog at
// order time so later price changes never alter historical orders.
type OrderLine struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

type Order struct {
	ID         string
	CustomerID string
	Status     OrderStatus
	Lines      []OrderLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
