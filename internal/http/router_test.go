package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	cartrepo "github.com/soragold/giftshop/internal/cart/repository"
	"github.com/soragold/giftshop/internal/cart/store"
	catalogrepo "github.com/soragold/giftshop/internal/catalog/repository"
	checkoutdomain "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/checkout/service"
	"github.com/soragold/giftshop/internal/identity"
	"github.com/soragold/giftshop/internal/metrics"
	ordersrepo "github.com/soragold/giftshop/internal/orders/repository"
	ordersservice "github.com/soragold/giftshop/internal/orders/service"
	"github.com/soragold/giftshop/internal/payment"
	"github.com/soragold/giftshop/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// switchableStatus lets a test decide how the simulated provider answers.
type switchableStatus struct {
	mu      sync.Mutex
	status  payment.Status
	refusal payment.Refusal
}

func (s *switchableStatus) GetStatus() (payment.Status, payment.Refusal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.refusal
}

func (s *switchableStatus) refuse(reason payment.Refusal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.refusal = payment.StatusFailed, reason
}

type testEnv struct {
	handler  http.Handler
	carts    *cartrepo.MemoryRepository
	sessions *session.Manager
	status   *switchableStatus
	metrics  *metrics.ServerMetrics
}

func newTestEnv(t *testing.T, verifier identity.TokenVerifier) *testEnv {
	t.Helper()
	return newLoggedTestEnv(t, verifier, nil)
}

func newLoggedTestEnv(t *testing.T, verifier identity.TokenVerifier, log *zap.Logger) *testEnv {
	t.Helper()

	catalog, err := catalogrepo.NewRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })
	require.NoError(t, catalog.RunMigrations("../catalog/repository/migrations"))

	status := &switchableStatus{status: payment.StatusSucceeded}
	orders := ordersservice.NewService(ordersrepo.NewMemoryRepository(), nil)
	checkout := service.NewService(catalog, payment.NewSimulatedGateway(status, nil), orders)

	carts := cartrepo.NewMemoryRepository()
	sessions := session.NewManager(func() *store.Store {
		return store.New(carts, store.WithStockPolicy(store.StockPolicyClamp))
	}, checkout, session.WithSweepInterval(0))
	t.Cleanup(func() { _ = sessions.Close() })

	m := metrics.NewServerMetrics(prometheus.NewRegistry())
	handler := NewRouter(RouterConfig{
		Sessions: sessions,
		Catalog:  catalog,
		Orders:   orders,
		Verifier: verifier,
		Metrics:  m,
		Logger:   log,
	})
	return &testEnv{handler: handler, carts: carts, sessions: sessions, status: status, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, customer string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if customer != "" {
		req.Header.Set(CustomerIDHeader, customer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func validAddress() checkoutdomain.ShippingAddress {
	return checkoutdomain.ShippingAddress{
		FirstName:  "Asha",
		LastName:   "Rao",
		Email:      "asha@example.com",
		Address:    "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "India",
	}
}

// fillCart adds two boxes of chocolates and one rose bouquet.
func (e *testEnv) fillCart(t *testing.T, customer string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/cart/items", customer, AddItemRequestDTO{ProductID: "1", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, "/api/v1/cart/items", customer, AddItemRequestDTO{ProductID: "2", Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// reviewing begins a checkout and submits a valid address.
func (e *testEnv) reviewing(t *testing.T, customer string) service.View {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/checkout", customer, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPut, "/api/v1/checkout/shipping", customer, validAddress())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[service.View](t, rec)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/products?sort_by=price-low", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ProductListDTO](t, rec)
	require.Equal(t, 4, list.Count)
	assert.Equal(t, "2", list.Products[0].ID)
	assert.Equal(t, "3", list.Products[3].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/products?query=ROSE", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[ProductListDTO](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "2", list.Products[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/products?price_range=cheap", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_filter", decode[ErrorResponse](t, rec).Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Requests.WithLabelValues("/api/v1/products", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Requests.WithLabelValues("/api/v1/products", "400")))
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/products/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	product := decode[ProductDTO](t, rec)
	assert.Equal(t, "89.99", product.Price.StringFixed(2))

	rec = env.do(t, http.MethodGet, "/api/v1/products/99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCart_RequiresCustomer(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[ErrorResponse](t, rec).Code)
}

func TestCart_Lifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[CartResponseDTO](t, rec)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.TotalItems)
	assert.True(t, cart.Subtotal.Equal(decimal.RequireFromString("244.97")))
	assert.True(t, cart.Persisted)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/1", "alice", UpdateQuantityRequestDTO{Quantity: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, decode[CartResponseDTO](t, rec).TotalItems)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/items/1", "alice", UpdateQuantityRequestDTO{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decode[CartResponseDTO](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "2", cart.Items[0].ProductID)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart/items/404", "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/cart/visibility", "alice", VisibilityRequestDTO{Open: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[CartResponseDTO](t, rec).Open)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[CartResponseDTO](t, rec).Items)

	_, err := env.carts.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, cartrepo.ErrCartNotFound)
}

func TestCart_AddItemErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", "alice", AddItemRequestDTO{ProductID: "99", Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", "alice", AddItemRequestDTO{ProductID: "1", Quantity: -2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", "alice", AddItemRequestDTO{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the stock policy caps at the 25 bouquets in stock
	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", "alice", AddItemRequestDTO{ProductID: "2", Quantity: 40})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 25, decode[CartResponseDTO](t, rec).TotalItems)
}

func TestCart_IsolatedPerCustomer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[CartResponseDTO](t, rec).Items)
}

func TestLogout_KeepsPersistedCart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/session/logout", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.sessions.Len())

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[CartResponseDTO](t, rec).TotalItems)
}

func TestCheckout_HappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/checkout", "alice", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[service.View](t, rec)
	assert.Equal(t, checkoutdomain.CheckoutStatusCollectingShipping, view.Status)
	assert.Equal(t, "India", view.Address.Country)
	assert.Equal(t, "264.57", view.Totals.GrandTotal.StringFixed(2))

	rec = env.do(t, http.MethodPut, "/api/v1/checkout/shipping", "alice", checkoutdomain.ShippingAddress{FirstName: "Asha"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Contains(t, errResp.Fields, "city")
	assert.NotContains(t, errResp.Fields, "first_name")

	rec = env.do(t, http.MethodPut, "/api/v1/checkout/shipping", "alice", validAddress())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checkoutdomain.CheckoutStatusReviewingOrder, decode[service.View](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/payment", "alice", nil, IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pay := decode[PaymentResponseDTO](t, rec)
	require.NotNil(t, pay.Intent)
	assert.Equal(t, int64(26457), pay.Intent.AmountMinor)
	assert.Equal(t, "INR", pay.Intent.Currency)
	assert.True(t, pay.Checkout.Processing)

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/payment/callback", "alice",
		payment.Callback{Status: payment.StatusSucceeded, IntentID: pay.Intent.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[service.View](t, rec)
	assert.Equal(t, checkoutdomain.CheckoutStatusCompleted, done.Status)
	require.NotEmpty(t, done.OrderID)
	assert.NotEmpty(t, done.PaymentRef)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "alice", nil)
	assert.Empty(t, decode[CartResponseDTO](t, rec).Items)

	rec = env.do(t, http.MethodGet, "/api/v1/checkout", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/orders", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[OrderListDTO](t, rec).Count)

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+done.OrderID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+done.OrderID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_EmptyCartAndDuplicateBegin(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/checkout", "alice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "empty_cart", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/api/v1/checkout", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.fillCart(t, "alice")
	rec = env.do(t, http.MethodPost, "/api/v1/checkout", "alice", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/checkout", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "checkout_exists", decode[ErrorResponse](t, rec).Code)
}

func TestCheckout_PaymentFailedKeepsCart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")
	env.reviewing(t, "alice")
	env.status.refuse(payment.RefusalCardDeclined)

	rec := env.do(t, http.MethodPost, "/api/v1/checkout/payment", "alice", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	intent := decode[PaymentResponseDTO](t, rec).Intent

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/payment/callback", "alice",
		payment.Callback{Status: payment.StatusSucceeded, IntentID: intent.ID})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "payment_failed", errResp.Code)
	assert.Equal(t, string(payment.RefusalCardDeclined), errResp.Details)

	rec = env.do(t, http.MethodGet, "/api/v1/checkout", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[service.View](t, rec)
	assert.Equal(t, checkoutdomain.CheckoutStatusReviewingOrder, view.Status)
	assert.False(t, view.Processing)
	assert.NotEmpty(t, view.LastError)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "alice", nil)
	assert.Equal(t, 3, decode[CartResponseDTO](t, rec).TotalItems)
}

func TestCheckout_PaymentCancelled(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")
	env.reviewing(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/checkout/payment", "alice", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	intent := decode[PaymentResponseDTO](t, rec).Intent

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/payment/callback", "alice",
		payment.Callback{Status: payment.StatusCancelled, IntentID: intent.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[service.View](t, rec)
	assert.Equal(t, checkoutdomain.CheckoutStatusReviewingOrder, view.Status)
	assert.Equal(t, "payment cancelled", view.LastError)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "alice", nil)
	cart := decode[CartResponseDTO](t, rec)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 1, cart.Items[1].Quantity)
}

func TestCheckout_PaymentInProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")
	env.reviewing(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/checkout/payment", "alice", nil, IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[PaymentResponseDTO](t, rec).Intent

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/payment", "alice", nil, IdempotencyKeyHeader, "key-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, first.ID, decode[PaymentResponseDTO](t, rec).Intent.ID)

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/payment", "alice", nil, IdempotencyKeyHeader, "key-2")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/back", "alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "payment_in_progress", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/checkout/payment/callback", "alice",
		payment.Callback{Status: payment.StatusSucceeded, IntentID: "someone-elses"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_BackAndAbandon(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fillCart(t, "alice")
	env.reviewing(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/checkout/back", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[service.View](t, rec)
	assert.Equal(t, checkoutdomain.CheckoutStatusCollectingShipping, view.Status)
	assert.Equal(t, "Bengaluru", view.Address.City)

	rec = env.do(t, http.MethodDelete, "/api/v1/checkout", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, checkoutdomain.CheckoutStatusAbandoned, decode[service.View](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "alice", nil)
	assert.Equal(t, 3, decode[CartResponseDTO](t, rec).TotalItems)

	rec = env.do(t, http.MethodPost, "/api/v1/checkout", "alice", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (*identity.Principal, error) {
	if token != "good-token" {
		return nil, identity.ErrInvalidToken
	}
	return &identity.Principal{CustomerID: "firebase-uid"}, nil
}

func TestAuthMiddleware_BearerTokens(t *testing.T) {
	env := newTestEnv(t, fakeVerifier{})

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "", nil, "Authorization", "Bearer good-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "firebase-uid", decode[CartResponseDTO](t, rec).CustomerID)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "", nil, "Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the development header is ignored once tokens are verified
	rec = env.do(t, http.MethodGet, "/api/v1/cart", "alice", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleError_Unknown(t *testing.T) {
	rec := httptest.NewRecorder()
	responder{log: zap.NewNop()}.handleError(rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decode[ErrorResponse](t, rec).Code)
}
