package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	cartdomain "github.com/soragold/giftshop/internal/cart/domain"
	"github.com/soragold/giftshop/internal/checkout/service"
	"github.com/soragold/giftshop/internal/session"
	"go.uber.org/zap"
)

// SessionManager hands out the live cart and checkout of a customer.
type SessionManager interface {
	Acquire(ctx context.Context, customerID string) (*session.Session, error)
	Logout(ctx context.Context, customerID string)
	BeginCheckout(ctx context.Context, sess *session.Session) (*service.Flow, error)
	Checkout(sess *session.Session) (*service.Flow, error)
}

type CartHandler struct {
	responder
	sessions SessionManager
	catalog  ProductReader
	timeout  time.Duration
}

func NewCartHandler(sessions SessionManager, catalog ProductReader, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{responder: responder{log: log}, sessions: sessions, catalog: catalog, timeout: timeout}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type VisibilityRequestDTO struct {
	Open bool `json:"open"`
}

type CartResponseDTO struct {
	CustomerID string                `json:"customer_id"`
	Items      []cartdomain.LineItem `json:"items"`
	TotalItems int                   `json:"total_items"`
	Subtotal   decimal.Decimal       `json:"subtotal"`
	Open       bool                  `json:"open"`
	// Persisted is false while the last load or save of this cart failed.
	Persisted bool `json:"persisted"`
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", errBadRequest)
	}
	return nil
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Acquire(r.Context(), customerIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *CartHandler) respondCart(w http.ResponseWriter, status int, sess *session.Session) {
	cart := sess.Cart
	items := cart.Items()
	if items == nil {
		items = []cartdomain.LineItem{}
	}
	h.respondJSON(w, status, CartResponseDTO{
		CustomerID: sess.CustomerID,
		Items:      items,
		TotalItems: cart.TotalItemCount(),
		Subtotal:   cart.Subtotal(),
		Open:       cart.IsOpen(),
		Persisted:  cart.Persisted(),
	})
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondCart(w, http.StatusOK, sess)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.handleError(w, err)
		return
	}
	if req.ProductID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	if err := sess.Cart.AddItem(ctx, product.Snapshot(), req.Quantity); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondCart(w, http.StatusCreated, sess)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.handleError(w, err)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Cart.UpdateQuantity(ctx, chi.URLParam(r, "product_id"), req.Quantity); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK, sess)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Cart.RemoveItem(ctx, chi.URLParam(r, "product_id")); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK, sess)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Cart.ClearCart(ctx); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondCart(w, http.StatusOK, sess)
}

// PUT /api/v1/cart/visibility
func (h *CartHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		h.handleError(w, err)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Cart.SetOpen(req.Open)
	h.respondCart(w, http.StatusOK, sess)
}

// POST /api/v1/session/logout
func (h *CartHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), customerIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
