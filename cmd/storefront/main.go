package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cartpoller "github.com/soragold/giftshop/internal/cart/poller"
	"github.com/soragold/giftshop/internal/cart/store"
	catalogrepo "github.com/soragold/giftshop/internal/catalog/repository"
	checkoutservice "github.com/soragold/giftshop/internal/checkout/service"
	"github.com/soragold/giftshop/internal/config"
	h "github.com/soragold/giftshop/internal/http"
	"github.com/soragold/giftshop/internal/identity"
	"github.com/soragold/giftshop/internal/metrics"
	"github.com/soragold/giftshop/internal/orders/publisher"
	ordersservice "github.com/soragold/giftshop/internal/orders/service"
	"github.com/soragold/giftshop/internal/session"
	"github.com/soragold/giftshop/pkg/logger"
	"github.com/soragold/giftshop/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	zl, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// otelhttp and otelgrpc pick up the global provider and propagator
	shutdownTracing := tracing.Init(cfg.ServiceName, cfg.Env)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	// Catalog
	catalog, err := catalogrepo.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()
	if err := catalog.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	log.Info("catalog ready", zap.String("path", cfg.CatalogDBPath))

	// Carts
	carts, closers, err := newCartRepository(ctx, cfg, log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		for _, c := range closers {
			if err := c(closeCtx); err != nil {
				log.Warn("failed to close cart storage", zap.Error(err))
			}
		}
	}()
	if err != nil {
		return err
	}
	policy, err := store.ParseStockPolicy(cfg.StockPolicy)
	if err != nil {
		return err
	}

	// Orders
	ordersRepo, err := newOrdersRepository(cfg, log)
	if err != nil {
		return err
	}
	defer ordersRepo.Close()
	orders := ordersservice.NewService(ordersRepo, log)

	// Checkout
	m := metrics.NewServerMetrics(nil)
	checkout := checkoutservice.NewService(catalog, newGateway(cfg, log), orders,
		checkoutservice.WithLogger(log),
		checkoutservice.WithCurrency(cfg.Currency),
		checkoutservice.WithDefaultCountry(cfg.DefaultCountry),
		checkoutservice.WithMaxConcurrent(cfg.PriceRefreshConcurrency),
		checkoutservice.WithTransitionObserver(m.ObserveTransition),
		checkoutservice.WithPaymentObserver(m.ObservePayment),
	)

	sessions := session.NewManager(
		func() *store.Store {
			return store.New(carts, store.WithLogger(log), store.WithStockPolicy(policy))
		},
		checkout,
		session.WithLogger(log),
		session.WithIdleTTL(cfg.SessionIdleTTL),
		session.WithSweepInterval(cfg.SessionSweepInterval),
		session.WithOnCreate(func(s *session.Session) { s.Cart.Subscribe(m.ObserveCart) }),
	)
	defer sessions.Close()

	// Identity
	var verifier identity.TokenVerifier
	if cfg.FirebaseProject != "" {
		fv, err := identity.NewFirebaseVerifier(ctx, cfg.FirebaseProject)
		if err != nil {
			return err
		}
		verifier = fv
		log.Info("verifying Firebase ID tokens", zap.String("project", cfg.FirebaseProject))
	} else {
		log.Warn("no identity provider configured; trusting the " + h.CustomerIDHeader + " header")
	}

	// Events
	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		outbox := publisher.NewOutboxPoller(ordersRepo, log, cfg.KafkaBrokers...)
		defer outbox.Close()
		cartEvents := cartpoller.NewPoller(carts, sessions, log, cfg.KafkaBrokers...)
		defer cartEvents.Close()

		wg.Add(2)
		go func() {
			defer wg.Done()
			outbox.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			cartEvents.Run(ctx)
		}()
		log.Info("event pollers started", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		log.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	// HTTP
	router := h.NewRouter(h.RouterConfig{
		Sessions:           sessions,
		Catalog:            catalog,
		Orders:             orders,
		Verifier:           verifier,
		Metrics:            m,
		MetricsHandler:     metrics.Handler(),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Logger:             log,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC admin: health and reflection
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	serveErr := make(chan error, 2)
	go func() {
		log.Info("storefront HTTP listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("admin gRPC listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	select {
	case <-ctx.Done():
		log.Info("shutting down storefront")
		err = nil
	case err = <-serveErr:
		log.Error("server failed, shutting down", zap.Error(err))
		stop()
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.Error("server forced to shutdown", zap.Error(errShutdown))
	}
	grpcServer.GracefulStop()
	wg.Wait()

	log.Info("storefront stopped")
	return err
}
