package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soragold/giftshop/internal/cart/store"
	catalogdomain "github.com/soragold/giftshop/internal/catalog/domain"
	catalogrepo "github.com/soragold/giftshop/internal/catalog/repository"
	"github.com/soragold/giftshop/internal/checkout/service"
	ordersrepo "github.com/soragold/giftshop/internal/orders/repository"
	"github.com/soragold/giftshop/internal/payment"
	"github.com/soragold/giftshop/internal/session"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type responder struct {
	log *zap.Logger
}

func (rs responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (rs responder) respondError(w http.ResponseWriter, status int, code, message string) {
	rs.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts domain errors to HTTP status codes.
func (rs responder) handleError(w http.ResponseWriter, err error) {
	var (
		validation *service.ValidationError
		paymentErr *service.PaymentError
	)

	switch {
	case errors.Is(err, store.ErrNotAuthenticated):
		rs.respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.As(err, &validation):
		rs.respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  err.Error(),
			Code:   "invalid_address",
			Fields: validation.Fields,
		})
	case errors.Is(err, service.ErrEmptyCart):
		rs.respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, store.ErrInvalidQuantity), errors.Is(err, store.ErrInvalidProduct):
		rs.respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, catalogdomain.ErrInvalidFilter):
		rs.respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
	case errors.Is(err, payment.ErrIntentMismatch), errors.Is(err, payment.ErrUnknownCallback):
		rs.respondError(w, http.StatusBadRequest, "invalid_callback", err.Error())
	case errors.Is(err, catalogrepo.ErrProductNotFound):
		rs.respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, ordersrepo.ErrOrderNotFound):
		rs.respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, session.ErrNoCheckout):
		rs.respondError(w, http.StatusNotFound, "no_checkout", err.Error())
	case errors.Is(err, store.ErrOutOfStock):
		rs.respondError(w, http.StatusConflict, "out_of_stock", err.Error())
	case errors.Is(err, session.ErrCheckoutExists):
		rs.respondError(w, http.StatusConflict, "checkout_exists", err.Error())
	case errors.Is(err, service.ErrPaymentInProgress):
		rs.respondError(w, http.StatusConflict, "payment_in_progress", err.Error())
	case errors.Is(err, service.ErrNoPaymentInProgress):
		rs.respondError(w, http.StatusConflict, "no_payment_in_progress", err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		rs.respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, payment.ErrUnavailable):
		rs.respondError(w, http.StatusServiceUnavailable, "payment_unavailable", err.Error())
	case errors.As(err, &paymentErr):
		rs.respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:   paymentErr.Error(),
			Code:    "payment_" + string(paymentErr.Kind),
			Details: paymentErr.Reason,
		})
	case errors.Is(err, errBadRequest):
		rs.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		rs.log.Error("unhandled request error", zap.Error(err))
		rs.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

var errBadRequest = errors.New("invalid request")
