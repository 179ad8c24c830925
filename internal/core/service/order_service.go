package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrInvalidCustomer      = errors.New("invalid customer_id")
	ErrNoProductsFound      = errors.New("no product found with the provided ids")
	ErrProductsNotFound     = errors.New("no product found with the ids")
	ErrInsufficientQuantity = errors.New("insufficient quantity for products")
	ErrEmptyOrder           = errors.New("order must contain at least one product")
	ErrInvalidQuantity      = errors.New("quantity must be positive for products")
)

type OrderService struct {
	customers port.CustomerRepository
	products  port.ProductRepository
	orders    port.OrderRepository
	logger    *slog.Logger
}

func NewOrderService(customers port.CustomerRepository, products port.ProductRepository, orders port.OrderRepository, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		customers: customers,
		products:  products,
		orders:    orders,
		logger:    logger,
	}
}

// CreateOrder validates the customer and every requested line against the
// catalog, reserves stock with a guarded decrement, and persists the order
// with prices snapshotted at call time. It fails rather than partially
// succeeding: validation errors abort before any write, and a persistence
// failure after the decrement is compensated by restoring the stock.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, lines []domain.OrderLineRequest) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if bad := invalidQuantityIDs(lines); len(bad) > 0 {
		return nil, fmt.Errorf("%w %s", ErrInvalidQuantity, strings.Join(bad, ","))
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer lookup failed: %w", err)
	}
	if customer == nil {
		return nil, ErrInvalidCustomer
	}

	found, err := s.products.FindAllByID(ctx, distinctProductIDs(lines))
	if err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}
	if len(found) == 0 {
		return nil, ErrNoProductsFound
	}

	catalog := make(map[string]domain.Product, len(found))
	for _, p := range found {
		catalog[p.ID] = p
	}

	if missing := missingProductIDs(lines, catalog); len(missing) > 0 {
		return nil, fmt.Errorf("%w %s", ErrProductsNotFound, strings.Join(missing, ","))
	}

	if short := insufficientProductIDs(lines, catalog); len(short) > 0 {
		return nil, fmt.Errorf("%w %s", ErrInsufficientQuantity, strings.Join(short, ","))
	}

	orderLines := make([]domain.OrderLine, 0, len(lines))
	decrements := make([]domain.StockAdjustment, 0, len(lines))
	for _, line := range lines {
		orderLines = append(orderLines, domain.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     catalog[line.ProductID].Price,
		})
		decrements = append(decrements, domain.StockAdjustment{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	// Reserve stock before persisting. The decrement is conditional on each
	// row still holding enough stock, so two concurrent orders can never
	// both pass the check above and oversell: the slower one fails here.
	failed, err := s.products.DecrementStock(ctx, decrements)
	if err != nil {
		return nil, fmt.Errorf("stock decrement failed: %w", err)
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("%w %s", ErrInsufficientQuantity, strings.Join(failed, ","))
	}

	order, err := s.orders.Create(ctx, domain.Order{
		CustomerID: customer.ID,
		Status:     domain.OrderStatusConfirmed,
		Lines:      orderLines,
	})
	if err != nil {
		if rollbackErr := s.products.IncrementStock(ctx, decrements); rollbackErr != nil {
			s.logger.Error("CRITICAL stock rollback failed",
				"customer_id", customer.ID,
				"error", rollbackErr)
		}
		return nil, fmt.Errorf("order persistence failed: %w", err)
	}

	return order, nil
}

func distinctProductIDs(lines []domain.OrderLineRequest) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

func invalidQuantityIDs(lines []domain.OrderLineRequest) []string {
	var ids []string
	for _, line := range lines {
		if line.Quantity <= 0 {
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

func missingProductIDs(lines []domain.OrderLineRequest, catalog map[string]domain.Product) []string {
	var ids []string
	for _, line := range lines {
		if _, ok := catalog[line.ProductID]; !ok {
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

// insufficientProductIDs reports lines asking for more than the catalog has.
// A line whose product is absent from the catalog counts as insufficient,
// though after the missing-id gate that cannot happen.
func insufficientProductIDs(lines []domain.OrderLineRequest, catalog map[string]domain.Product) []string {
	var ids []string
	for _, line := range lines {
		p, ok := catalog[line.ProductID]
		if !ok || p.Quantity < line.Quantity {
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}
