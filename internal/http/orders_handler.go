package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soragold/giftshop/internal/orders/domain"
	"go.uber.org/zap"
)

type OrderReader interface {
	ListOrders(ctx context.Context, customerID string) ([]*domain.Order, error)
	GetOrder(ctx context.Context, customerID, orderID string) (*domain.Order, error)
}

type OrdersHandler struct {
	responder
	orders  OrderReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{responder: responder{log: log}, orders: orders, timeout: timeout}
}

type OrderListDTO struct {
	Orders []*domain.Order `json:"orders"`
	Count  int             `json:"count"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, customerIDFromContext(ctx))
	if err != nil {
		h.handleError(w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	h.respondJSON(w, http.StatusOK, OrderListDTO{Orders: orders, Count: len(orders)})
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, customerIDFromContext(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, order)
}
