package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"github.com/soragold/giftshop/internal/cart/cache"
	cartrepo "github.com/soragold/giftshop/internal/cart/repository"
	"github.com/soragold/giftshop/internal/config"
	ordersrepo "github.com/soragold/giftshop/internal/orders/repository"
	"github.com/soragold/giftshop/internal/payment"
	"github.com/soragold/giftshop/pkg/circuitbreaker"
	"go.uber.org/zap"
)

type closer func(context.Context) error

// ordersBackend is what the storefront needs from order persistence.
type ordersBackend interface {
	ordersrepo.OrderRepository
	ordersrepo.OutboxRepository
}

func newCartRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (cartrepo.CartRepository, []closer, error) {
	var (
		repo    cartrepo.CartRepository
		closers []closer
	)

	switch cfg.CartBackend {
	case "mongo":
		db, disconnect, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		closers = append(closers, disconnect)
		mongoRepo := cartrepo.NewMongoRepository(db)
		if err := mongoRepo.CreateIndexes(ctx); err != nil {
			return nil, closers, fmt.Errorf("failed to create cart indexes: %w", err)
		}
		log.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		repo = mongoRepo
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		closers = append(closers, func(context.Context) error { return client.Close() })
		log.Info("using Firestore cart storage", zap.String("project", cfg.FirestoreProject))
		repo = cartrepo.NewFirestoreRepository(client)
	default:
		log.Warn("using in-memory cart storage; carts are lost on restart")
		repo = cartrepo.NewMemoryRepository()
	}

	if cfg.RedisAddr == "" {
		return repo, closers, nil
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	closers = append(closers, func(context.Context) error { return redisClient.Close() })
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// the cached repository falls back to storage while Redis is down
		log.Warn("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	} else {
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	}
	redisCache := cache.NewRedisCache(redisClient, cache.WithKeyPrefix(cfg.RedisKeyPrefix))
	return cache.NewCachedRepository(repo, redisCache, log), closers, nil
}

func newOrdersRepository(cfg *config.Config, log *zap.Logger) (ordersBackend, error) {
	if cfg.OrdersBackend != "postgres" {
		log.Warn("using in-memory order storage; orders are lost on restart")
		return ordersrepo.NewMemoryRepository(), nil
	}

	creds := &ordersrepo.Credentials{
		Host:              cfg.DB.Host,
		Port:              cfg.DB.Port,
		User:              cfg.DB.User,
		Password:          cfg.DB.Password,
		DBName:            cfg.DB.Name,
		MigrationsDirPath: cfg.OrdersMigrationsPath,
	}
	repo, err := ordersrepo.NewRepository(creds, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.RunMigrations(creds); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("order database migrations completed")
	return repo, nil
}

func newGateway(cfg *config.Config, log *zap.Logger) payment.Gateway {
	var gw payment.Gateway
	switch cfg.PaymentProvider {
	case "razorpay":
		gw = payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, log)
	default:
		gw = payment.NewSimulatedGateway(payment.RandomStatus{SuccessRate: cfg.SimulatedSuccessRate}, log)
	}
	log.Info("payment gateway ready", zap.String("provider", cfg.PaymentProvider))
	return payment.WithBreaker(gw, circuitbreaker.DefaultSettings("payment-"+cfg.PaymentProvider), log)
}
