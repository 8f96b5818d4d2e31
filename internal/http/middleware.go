package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/soragold/giftshop/internal/identity"
	"github.com/soragold/giftshop/internal/metrics"
	"github.com/soragold/giftshop/pkg/logger"
	"go.uber.org/zap"
)

type ctxKey int

const customerIDKey ctxKey = iota

const CustomerIDHeader = "X-Customer-ID"

func withCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerIDKey, customerID)
}

func customerIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(customerIDKey).(string); ok {
		return id
	}
	return ""
}

// AuthMiddleware resolves the caller. With a verifier, a Bearer ID token is
// required; without one, the X-Customer-ID header is trusted (development only).
// Requests without credentials pass through anonymously.
func AuthMiddleware(verifier identity.TokenVerifier, log *zap.Logger) func(http.Handler) http.Handler {
	rs := responder{log: log}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				if id := strings.TrimSpace(r.Header.Get(CustomerIDHeader)); id != "" {
					r = r.WithContext(withCustomerID(r.Context(), id))
				}
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			if authz == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok {
				rs.respondError(w, http.StatusUnauthorized, "unauthenticated", "authorization header must be a Bearer token")
				return
			}
			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, identity.ErrInvalidToken) {
					log.Warn("token verification failed", zap.Error(err))
				}
				rs.respondError(w, http.StatusUnauthorized, "unauthenticated", "invalid identity token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withCustomerID(r.Context(), principal.CustomerID)))
		})
	}
}

// RequireCustomer rejects anonymous requests.
func RequireCustomer(log *zap.Logger) func(http.Handler) http.Handler {
	rs := responder{log: log}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if customerIDFromContext(r.Context()) == "" {
				rs.respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with the chi request id and, when
// tracing is on, the trace and span ids.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.WithTrace(r.Context(), log).Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("customer_id", customerIDFromContext(r.Context())))
		})
	}
}

// MetricsMiddleware records request counts and latency per route pattern.
func MetricsMiddleware(m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			m.Requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
