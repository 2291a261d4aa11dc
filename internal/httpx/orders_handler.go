package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/panzaverde/storefront/internal/docstore"
	"github.com/panzaverde/storefront/internal/orders"
	"github.com/panzaverde/storefront/internal/redisx"
)

type OrdersHandler struct {
	Orders *orders.Service
	Redis  *redis.Client // optional, status cache for tracking
}

type CreateOrderReq struct {
	orders.CustomerInfo
	Items []orders.LineItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

type UpdateStatusReq struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/code/{code}", h.getOrderByCode)
	r.Get("/orders/code/{code}/status", h.getOrderStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Name == "" || req.Email == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.PlaceOrder(ctx, req.CustomerInfo, req.Items, req.Total)
	if err != nil {
		var insufficient *orders.InsufficientStockError
		var decrement *orders.StockDecrementError
		switch {
		case errors.As(err, &insufficient), errors.As(err, &decrement):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, docstore.ErrTxConflict):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			writeError(w, http.StatusBadRequest, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) getOrderByCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Orders.OrderByCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// getOrderStatus serves the tracking widget: cache first, store second.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, code)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	order, err := h.Orders.OrderByCode(ctx, code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	body := map[string]any{"status": order.Status, "updated_at": order.UpdatedAt}
	if h.Redis != nil {
		if b, err := json.Marshal(body); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var (
		list []orders.Order
		err  error
	)
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, parseErr := orders.ParseStatus(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr)
			return
		}
		list, err = h.Orders.OrdersByStatus(ctx, status)
	} else {
		list, err = h.Orders.Orders(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	status, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.UpdateStatus(ctx, chi.URLParam(r, "id"), status, req.Comment)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
