package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/pkg/metrics"
)

type HTTPHandler struct {
	orderService *service.OrderService
	products     port.ProductRepository
	orders       port.OrderRepository
	cache        port.StockCache
	metrics      *metrics.OrderMetrics
	logger       *slog.Logger
	cacheTTL     time.Duration
}

func NewHTTPHandler(orderService *service.OrderService, products port.ProductRepository, orders port.OrderRepository, cache port.StockCache, m *metrics.OrderMetrics, logger *slog.Logger, cacheTTL time.Duration) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{
		orderService: orderService,
		products:     products,
		orders:       orders,
		cache:        cache,
		metrics:      m,
		logger:       logger,
		cacheTTL:     cacheTTL,
	}
}

func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Post("/api/orders", h.CreateOrder)
	r.Get("/api/orders/{id}", h.GetOrder)
	r.Get("/api/products/{id}/availability", h.GetAvailability)
	r.Put("/api/products/{id}/stock", h.UpdateStock)
	return r
}

type orderLineRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type createOrderRequest struct {
	RequestID  string             `json:"request_id,omitempty"`
	CustomerID string             `json:"customer_id"`
	Products   []orderLineRequest `json:"products"`
}

type orderLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"customer_id"`
	Status     string              `json:"status"`
	Products   []orderLineResponse `json:"products"`
	CreatedAt  time.Time           `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reject(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.CustomerID == "" || len(req.Products) == 0 {
		h.reject(w, http.StatusBadRequest, "bad_request", "missing required fields")
		return
	}

	reserved := false
	if req.RequestID != "" && h.cache != nil {
		ok, err := h.cache.SetIdempotency(r.Context(), "order:"+req.RequestID)
		if err != nil {
			h.logger.Error("idempotency check failed", "request_id", req.RequestID, "error", err)
			h.reject(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		if !ok {
			h.reject(w, http.StatusConflict, "duplicate_request", "duplicate request")
			return
		}
		reserved = true
	}

	lines := make([]domain.OrderLineRequest, len(req.Products))
	for i, p := range req.Products {
		lines[i] = domain.OrderLineRequest{ProductID: p.ID, Quantity: p.Quantity}
	}

	order, err := h.orderService.CreateOrder(r.Context(), req.CustomerID, lines)
	if err != nil {
		// The rejected request placed no order, so free its request_id for
		// a corrected retry.
		if reserved {
			if relErr := h.cache.ReleaseIdempotency(r.Context(), "order:"+req.RequestID); relErr != nil {
				h.logger.Warn("idempotency release failed", "request_id", req.RequestID, "error", relErr)
			}
		}

		status, reason := http.StatusInternalServerError, "internal"
		switch {
		case errors.Is(err, service.ErrInvalidCustomer):
			status, reason = http.StatusBadRequest, "invalid_customer"
		case errors.Is(err, service.ErrEmptyOrder), errors.Is(err, service.ErrInvalidQuantity):
			status, reason = http.StatusBadRequest, "bad_request"
		case errors.Is(err, service.ErrNoProductsFound), errors.Is(err, service.ErrProductsNotFound):
			status, reason = http.StatusNotFound, "products_not_found"
		case errors.Is(err, service.ErrInsufficientQuantity):
			status, reason = http.StatusGone, "insufficient_quantity"
		}
		if status == http.StatusInternalServerError {
			h.logger.Error("order creation failed", "customer_id", req.CustomerID, "error", err)
			h.reject(w, status, reason, "internal error")
			return
		}
		h.reject(w, status, reason, err.Error())
		return
	}

	if h.cache != nil {
		ids := make([]string, len(order.Lines))
		for i, line := range order.Lines {
			ids[i] = line.ProductID
		}
		if err := h.cache.InvalidateStock(r.Context(), ids); err != nil {
			h.logger.Warn("stock cache invalidation failed", "order_id", order.ID, "error", err)
		}
	}

	if h.metrics != nil {
		h.metrics.Created.Inc()
		h.metrics.LatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.orders.FindByID(r.Context(), id)
	if err != nil {
		h.logger.Error("order lookup failed", "order_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type availabilityResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Cached    bool   `json:"cached"`
}

func (h *HTTPHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.cache != nil {
		quantity, ok, err := h.cache.GetStock(r.Context(), id)
		if err != nil {
			h.logger.Warn("stock cache read failed", "product_id", id, "error", err)
		} else if ok {
			writeJSON(w, http.StatusOK, availabilityResponse{ProductID: id, Quantity: quantity, Cached: true})
			return
		}
	}

	products, err := h.products.FindAllByID(r.Context(), []string{id})
	if err != nil {
		h.logger.Error("product lookup failed", "product_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if len(products) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
		return
	}

	quantity := products[0].Quantity
	if h.cache != nil {
		if err := h.cache.SetStock(r.Context(), id, quantity, h.cacheTTL); err != nil {
			h.logger.Warn("stock cache write failed", "product_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, availabilityResponse{ProductID: id, Quantity: quantity, Cached: false})
}

type updateStockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *HTTPHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Quantity < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must not be negative"})
		return
	}

	products, err := h.products.FindAllByID(r.Context(), []string{id})
	if err != nil {
		h.logger.Error("product lookup failed", "product_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if len(products) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
		return
	}

	// The version read above guards the write: a concurrent order or restock
	// bumps it and this update loses instead of silently overwriting.
	if err := h.products.UpdateQuantity(r.Context(), []domain.StockUpdate{
		{ProductID: id, Quantity: req.Quantity, Version: products[0].Version},
	}); err != nil {
		if errors.Is(err, storage.ErrOptimisticLock) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "stock changed concurrently, retry"})
			return
		}
		h.logger.Error("stock update failed", "product_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateStock(r.Context(), []string{id}); err != nil {
			h.logger.Warn("stock cache invalidation failed", "product_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, availabilityResponse{ProductID: id, Quantity: req.Quantity})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) reject(w http.ResponseWriter, status int, reason, message string) {
	if h.metrics != nil {
		h.metrics.Rejected.WithLabelValues(reason).Inc()
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func toOrderResponse(order *domain.Order) orderResponse {
	lines := make([]orderLineResponse, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = orderLineResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price.String(),
		}
	}
	return orderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Products:   lines,
		CreatedAt:  order.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
