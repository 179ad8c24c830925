package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type testEnv struct {
	mysql     *sql.DB
	customers *storage.CustomerAdapter
	products  *storage.ProductAdapter
	orders    *storage.OrderAdapter
	cleanup   func()
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return &testEnv{
		mysql:     db,
		customers: storage.NewCustomerAdapter(db),
		products:  storage.NewProductAdapter(db),
		orders:    storage.NewOrderAdapter(db),
		cleanup: func() {
			db.Close()
		},
	}
}

func getRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return rdb
}

func (e *testEnv) seedCustomer(t *testing.T, id string) {
	t.Helper()
	_, err := e.mysql.Exec(`
		INSERT INTO customers (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE name = VALUES(name)`,
		id, "integration "+id, id+"@example.com",
	)
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func (e *testEnv) seedProduct(t *testing.T, id, price string, quantity int) {
	t.Helper()
	_, err := e.mysql.Exec(`
		INSERT INTO products (id, name, price, quantity, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE price = VALUES(price), quantity = VALUES(quantity), version = 0`,
		id, "integration "+id, price, quantity,
	)
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func (e *testEnv) deleteOrdersFor(customerID string) {
	e.mysql.Exec(`
		DELETE op FROM order_products op
		JOIN orders o ON o.id = op.order_id
		WHERE o.customer_id = ?`, customerID)
	e.mysql.Exec(`DELETE FROM orders WHERE customer_id = ?`, customerID)
}

func (e *testEnv) stock(t *testing.T, productID string) int {
	t.Helper()
	var stock int
	if err := e.mysql.QueryRow(`SELECT quantity FROM products WHERE id = ?`, productID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

func (e *testEnv) orderCount(t *testing.T, customerID string) int {
	t.Helper()
	var count int
	if err := e.mysql.QueryRow(`SELECT COUNT(*) FROM orders WHERE customer_id = ?`, customerID).Scan(&count); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return count
}

func TestIntegration_CreateOrderFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customerID := "it-cust-" + uuid.NewString()[:8]
	productID := "it-prod-" + uuid.NewString()[:8]

	env.seedCustomer(t, customerID)
	env.seedProduct(t, productID, "10.00", 5)
	defer env.deleteOrdersFor(customerID)

	svc := service.NewOrderService(env.customers, env.products, env.orders, nil)

	order, err := svc.CreateOrder(ctx, customerID, []domain.OrderLineRequest{
		{ProductID: productID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if len(order.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Lines))
	}
	if !order.Lines[0].Price.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("expected snapshotted price 10.00, got %s", order.Lines[0].Price)
	}

	if got := env.stock(t, productID); got != 2 {
		t.Errorf("expected stock 2, got %d", got)
	}

	// Read back through the repository.
	stored, err := env.orders.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if stored == nil || len(stored.Lines) != 1 || stored.Lines[0].Quantity != 3 {
		t.Errorf("unexpected stored order: %+v", stored)
	}
}

func TestIntegration_ValidationFailures(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customerID := "it-cust-" + uuid.NewString()[:8]
	productID := "it-prod-" + uuid.NewString()[:8]
	emptyID := "it-prod-" + uuid.NewString()[:8]

	env.seedCustomer(t, customerID)
	env.seedProduct(t, productID, "5.00", 5)
	env.seedProduct(t, emptyID, "5.00", 0)
	defer env.deleteOrdersFor(customerID)

	svc := service.NewOrderService(env.customers, env.products, env.orders, nil)

	_, err := svc.CreateOrder(ctx, "it-no-such-customer", []domain.OrderLineRequest{
		{ProductID: productID, Quantity: 1},
	})
	if !errors.Is(err, service.ErrInvalidCustomer) {
		t.Errorf("expected ErrInvalidCustomer, got: %v", err)
	}

	_, err = svc.CreateOrder(ctx, customerID, []domain.OrderLineRequest{
		{ProductID: "it-no-such-product", Quantity: 1},
	})
	if !errors.Is(err, service.ErrNoProductsFound) {
		t.Errorf("expected ErrNoProductsFound, got: %v", err)
	}

	_, err = svc.CreateOrder(ctx, customerID, []domain.OrderLineRequest{
		{ProductID: productID, Quantity: 1},
		{ProductID: "it-no-such-product", Quantity: 1},
	})
	if !errors.Is(err, service.ErrProductsNotFound) {
		t.Errorf("expected ErrProductsNotFound, got: %v", err)
	}

	_, err = svc.CreateOrder(ctx, customerID, []domain.OrderLineRequest{
		{ProductID: productID, Quantity: 2},
		{ProductID: emptyID, Quantity: 1},
	})
	if !errors.Is(err, service.ErrInsufficientQuantity) {
		t.Errorf("expected ErrInsufficientQuantity, got: %v", err)
	}

	if got := env.orderCount(t, customerID); got != 0 {
		t.Errorf("validation failures must not persist orders, found %d", got)
	}
	if got := env.stock(t, productID); got != 5 {
		t.Errorf("validation failures must not touch stock, got %d", got)
	}
}

func TestIntegration_ConcurrentOrdersNoOversell(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customerID := "it-cust-" + uuid.NewString()[:8]
	productID := "it-prod-" + uuid.NewString()[:8]
	initialStock := 10
	totalRequests := 30

	env.seedCustomer(t, customerID)
	env.seedProduct(t, productID, "1.00", initialStock)
	defer env.deleteOrdersFor(customerID)

	svc := service.NewOrderService(env.customers, env.products, env.orders, nil)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(ctx, customerID, []domain.OrderLineRequest{
				{ProductID: productID, Quantity: 1},
			})
			if err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected exactly %d successes, got %d", initialStock, successCount.Load())
	}
	if got := env.stock(t, productID); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
	if got := env.orderCount(t, customerID); got != initialStock {
		t.Errorf("expected %d persisted orders, got %d", initialStock, got)
	}
}

func TestIntegration_HTTPFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	rdb := getRedis(t)
	defer rdb.Close()

	ctx := context.Background()
	customerID := "it-cust-" + uuid.NewString()[:8]
	productID := "it-prod-" + uuid.NewString()[:8]

	env.seedCustomer(t, customerID)
	env.seedProduct(t, productID, "10.00", 5)
	defer env.deleteOrdersFor(customerID)

	rdb.Del(ctx, "stock:"+productID)

	cache := storage.NewRedisAdapter(rdb)
	svc := service.NewOrderService(env.customers, env.products, env.orders, nil)
	h := handler.NewHTTPHandler(svc, env.products, env.orders, cache, nil, nil, time.Minute)

	router := chi.NewRouter()
	router.Mount("/", h.Routes())
	server := httptest.NewServer(router)
	defer server.Close()

	body := fmt.Sprintf(`{"request_id":%q,"customer_id":%q,"products":[{"id":%q,"quantity":3}]}`,
		uuid.NewString(), customerID, productID)

	resp, err := http.Post(server.URL+"/api/orders", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST /api/orders failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created struct {
		ID       string `json:"id"`
		Products []struct {
			Price string `json:"price"`
		} `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(created.Products) != 1 {
		t.Fatalf("expected 1 line in payload, got %+v", created)
	}
	// The rendered price trims trailing zeros, so compare numerically.
	price, err := decimal.NewFromString(created.Products[0].Price)
	if err != nil {
		t.Fatalf("unparseable price %q: %v", created.Products[0].Price, err)
	}
	if !price.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("expected price 10.00, got %q", created.Products[0].Price)
	}

	// Availability reflects the decrement and warms the cache.
	availResp, err := http.Get(server.URL + "/api/products/" + productID + "/availability")
	if err != nil {
		t.Fatalf("GET availability failed: %v", err)
	}
	defer availResp.Body.Close()

	var avail struct {
		Quantity int  `json:"quantity"`
		Cached   bool `json:"cached"`
	}
	if err := json.NewDecoder(availResp.Body).Decode(&avail); err != nil {
		t.Fatalf("decode availability: %v", err)
	}
	if avail.Quantity != 2 {
		t.Errorf("expected availability 2, got %d", avail.Quantity)
	}
}
