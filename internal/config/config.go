package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	HTTPPort           string
	GRPCPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	// Cart persistence: memory, mongo or firestore.
	CartBackend      string
	MongoURI         string
	MongoDatabase    string
	FirestoreProject string
	RedisAddr        string
	RedisPassword    string
	RedisKeyPrefix   string

	// Identity: when FirebaseProject is empty the X-Customer-ID header is trusted.
	FirebaseProject string

	CatalogDBPath         string
	CatalogMigrationsPath string

	// Orders persistence: memory or postgres.
	OrdersBackend        string
	DB                   DBConfig
	OrdersMigrationsPath string

	KafkaBrokers []string

	// Payment: simulated or razorpay.
	PaymentProvider      string
	RazorpayKeyID        string
	RazorpayKeySecret    string
	SimulatedSuccessRate int

	Currency                string
	DefaultCountry          string
	StockPolicy             string
	PriceRefreshConcurrency int
	SessionIdleTTL          time.Duration
	SessionSweepInterval    time.Duration
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "storefront"),
		Env:         getEnv("APP_ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		GRPCPort:           getEnv("GRPC_PORT", "9090"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		CartBackend:      getEnv("CART_BACKEND", "memory"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "giftshop"),
		FirestoreProject: getEnv("FIRESTORE_PROJECT", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisKeyPrefix:   getEnv("REDIS_KEY_PREFIX", "giftshop"),

		FirebaseProject: getEnv("FIREBASE_PROJECT", ""),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "file:catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/repository/migrations"),

		OrdersBackend: getEnv("ORDERS_BACKEND", "memory"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "giftshop"),
		},
		OrdersMigrationsPath: getEnv("ORDERS_MIGRATIONS_PATH", "./internal/orders/repository/migrations"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),

		PaymentProvider:      getEnv("PAYMENT_PROVIDER", "simulated"),
		RazorpayKeyID:        getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:    getEnv("RAZORPAY_KEY_SECRET", ""),
		SimulatedSuccessRate: getEnvInt("SIMULATED_SUCCESS_RATE", 95),

		Currency:                getEnv("CURRENCY", "INR"),
		DefaultCountry:          getEnv("DEFAULT_COUNTRY", "India"),
		StockPolicy:             getEnv("STOCK_POLICY", "clamp"),
		PriceRefreshConcurrency: getEnvInt("PRICE_REFRESH_CONCURRENCY", 4),
		SessionIdleTTL:          getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepInterval:    getEnvDuration("SESSION_SWEEP_INTERVAL", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CartBackend {
	case "memory", "mongo":
	case "firestore":
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT is required for cart backend %q", c.CartBackend)
		}
	default:
		return fmt.Errorf("unknown CART_BACKEND %q", c.CartBackend)
	}

	switch c.OrdersBackend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown ORDERS_BACKEND %q", c.OrdersBackend)
	}

	switch c.PaymentProvider {
	case "simulated":
	case "razorpay":
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required for razorpay")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	switch c.StockPolicy {
	case "none", "clamp":
	default:
		return fmt.Errorf("unknown STOCK_POLICY %q", c.StockPolicy)
	}

	if c.SimulatedSuccessRate < 0 || c.SimulatedSuccessRate > 100 {
		return fmt.Errorf("SIMULATED_SUCCESS_RATE must be between 0 and 100")
	}
	if c.PriceRefreshConcurrency < 1 {
		return fmt.Errorf("PRICE_REFRESH_CONCURRENCY must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
