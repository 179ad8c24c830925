package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

type CustomerAdapter struct {
	db *sql.DB
}

func NewCustomerAdapter(db *sql.DB) *CustomerAdapter {
	return &CustomerAdapter{db: db}
}

func (a *CustomerAdapter) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}

	return &c, nil
}

type ProductAdapter struct {
	db *sql.DB
}

func NewProductAdapter(db *sql.DB) *ProductAdapter {
	return &ProductAdapter{db: db}
}

func (a *ProductAdapter) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, price, quantity, version, created_at, updated_at
		FROM products WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := a.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (a *ProductAdapter) UpdateQuantity(ctx context.Context, updates []domain.StockUpdate) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND version = ?`,
			u.Quantity, u.ProductID, u.Version,
		)
		if err != nil {
			return fmt.Errorf("update quantity: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("%w: %s", ErrOptimisticLock, u.ProductID)
		}
	}

	return tx.Commit()
}

// DecrementStock applies every decrement in one transaction, each guarded so
// stock cannot go negative. One failed guard rolls back the whole batch and
// the failed ids are reported to the caller.
func (a *ProductAdapter) DecrementStock(ctx context.Context, decs []domain.StockAdjustment) ([]string, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var failed []string
	for _, d := range decs {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - ?, version = version + 1, updated_at = NOW()
			WHERE id = ? AND quantity >= ?`,
			d.Quantity, d.ProductID, d.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			failed = append(failed, d.ProductID)
		}
	}

	if len(failed) > 0 {
		return failed, nil
	}

	return nil, tx.Commit()
}

func (a *ProductAdapter) IncrementStock(ctx context.Context, incs []domain.StockAdjustment) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, inc := range incs {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity + ?, version = version + 1, updated_at = NOW()
			WHERE id = ?`,
			inc.Quantity, inc.ProductID,
		)
		if err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
	}

	return tx.Commit()
}

type OrderAdapter struct {
	db *sql.DB
}

func NewOrderAdapter(db *sql.DB) *OrderAdapter {
	return &OrderAdapter{db: db}
}

func (a *OrderAdapter) Create(ctx context.Context, order domain.Order) (*domain.Order, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	order.ID = uuid.NewString()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		order.ID, order.CustomerID, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_products (order_id, product_id, quantity, price)
			VALUES (?, ?, ?, ?)`,
			order.ID, line.ProductID, line.Quantity, line.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	return &order, nil
}

func (a *OrderAdapter) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := a.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.CustomerID, &o.Status, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT product_id, quantity, price
		FROM order_products WHERE order_id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.Price); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
