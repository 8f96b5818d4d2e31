// Package http exposes the storefront over a JSON API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/soragold/giftshop/internal/identity"
	"github.com/soragold/giftshop/internal/metrics"
	"github.com/soragold/giftshop/pkg/logger"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Sessions SessionManager
	Catalog  ProductReader
	Orders   OrderReader
	Verifier identity.TokenVerifier
	Metrics  *metrics.ServerMetrics
	// MetricsHandler serves /metrics; omitted when nil.
	MetricsHandler     http.Handler
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Logger             *zap.Logger
}

func NewRouter(cfg RouterConfig) chi.Router {
	log := logger.OrNop(cfg.Logger)
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	products := NewProductHandler(cfg.Catalog, timeout, log)
	cart := NewCartHandler(cfg.Sessions, cfg.Catalog, timeout, log)
	checkout := NewCheckoutHandler(cfg.Sessions, timeout, log)
	orders := NewOrdersHandler(cfg.Orders, timeout, log)
	rs := responder{log: log}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(AuthMiddleware(cfg.Verifier, log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		rs.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", products.ListProducts)
		r.Get("/products/{id}", products.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(RequireCustomer(log))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cart.GetCart)
				r.Delete("/", cart.ClearCart)
				r.Put("/visibility", cart.SetVisibility)
				r.Post("/items", cart.AddItem)
				r.Put("/items/{product_id}", cart.UpdateQuantity)
				r.Delete("/items/{product_id}", cart.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkout.Begin)
				r.Get("/", checkout.Get)
				r.Delete("/", checkout.Abandon)
				r.Put("/shipping", checkout.SubmitShipping)
				r.Post("/back", checkout.Back)
				r.Post("/payment", checkout.SubmitPayment)
				r.Post("/payment/callback", checkout.ResolvePayment)
			})

			r.Get("/orders", orders.ListOrders)
			r.Get("/orders/{id}", orders.GetOrder)
			r.Post("/session/logout", cart.Logout)
		})
	})

	return r
}
