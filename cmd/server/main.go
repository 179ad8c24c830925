package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/pkg/metrics"
)

type config struct {
	httpAddr      string
	mysqlDSN      string
	redisAddr     string
	stockCacheTTL time.Duration
}

func loadConfig() config {
	return config{
		httpAddr:      envOr("HTTP_ADDR", ":8080"),
		mysqlDSN:      envOr("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true"),
		redisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		stockCacheTTL: envDurationOr("STOCK_CACHE_TTL", 30*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.mysqlDSN)
	if err != nil {
		logger.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	// Initialize adapters
	customers := storage.NewCustomerAdapter(db)
	products := storage.NewProductAdapter(db)
	orders := storage.NewOrderAdapter(db)
	cache := storage.NewRedisAdapter(rdb)

	// Initialize service and handler
	orderService := service.NewOrderService(customers, products, orders, logger)
	orderMetrics := metrics.NewOrderMetrics(nil)
	httpHandler := handler.NewHTTPHandler(orderService, products, orders, cache, orderMetrics, logger, cfg.stockCacheTTL)

	router := chi.NewRouter()
	router.Mount("/", httpHandler.Routes())
	router.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    cfg.httpAddr,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
