package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	checkoutdomain "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/checkout/service"
	"github.com/soragold/giftshop/internal/payment"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	responder
	sessions SessionManager
	timeout  time.Duration
}

func NewCheckoutHandler(sessions SessionManager, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{responder: responder{log: log}, sessions: sessions, timeout: timeout}
}

type PaymentResponseDTO struct {
	Intent   *payment.Intent `json:"intent"`
	Checkout service.View    `json:"checkout"`
}

func (h *CheckoutHandler) flow(w http.ResponseWriter, r *http.Request) (*service.Flow, bool) {
	sess, err := h.sessions.Acquire(r.Context(), customerIDFromContext(r.Context()))
	if err != nil {
		h.handleError(w, err)
		return nil, false
	}
	flow, err := h.sessions.Checkout(sess)
	if err != nil {
		h.handleError(w, err)
		return nil, false
	}
	return flow, true
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess, err := h.sessions.Acquire(ctx, customerIDFromContext(ctx))
	if err != nil {
		h.handleError(w, err)
		return
	}
	flow, err := h.sessions.BeginCheckout(ctx, sess)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, flow.View())
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, flow.View())
}

// DELETE /api/v1/checkout
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	if err := flow.Abandon(); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, flow.View())
}

// PUT /api/v1/checkout/shipping
func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	var addr checkoutdomain.ShippingAddress
	if err := decodeJSON(r, &addr); err != nil {
		h.handleError(w, err)
		return
	}
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	if err := flow.SubmitShipping(addr); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, flow.View())
}

// POST /api/v1/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	if err := flow.Back(); err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, flow.View())
}

// POST /api/v1/checkout/payment
func (h *CheckoutHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	intent, err := flow.SubmitPayment(ctx, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, PaymentResponseDTO{Intent: intent, Checkout: flow.View()})
}

// POST /api/v1/checkout/payment/callback
func (h *CheckoutHandler) ResolvePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var cb payment.Callback
	if err := decodeJSON(r, &cb); err != nil {
		h.handleError(w, err)
		return
	}
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}

	view, err := flow.ResolvePayment(ctx, cb)
	var paymentErr *service.PaymentError
	if errors.As(err, &paymentErr) && paymentErr.Kind == service.PaymentCancelled {
		// the customer closed the payment sheet; back on review with nothing lost
		h.respondJSON(w, http.StatusOK, view)
		return
	}
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}
