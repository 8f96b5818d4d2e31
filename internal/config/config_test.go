package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.CartBackend)
	assert.Equal(t, "memory", cfg.OrdersBackend)
	assert.Equal(t, "simulated", cfg.PaymentProvider)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Equal(t, "India", cfg.DefaultCountry)
	assert.Equal(t, "clamp", cfg.StockPolicy)
	assert.Equal(t, 95, cfg.SimulatedSuccessRate)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "giftshop", cfg.RedisKeyPrefix)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("STOCK_POLICY", "none")
	t.Setenv("REDIS_KEY_PREFIX", "shop-eu")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, "none", cfg.StockPolicy)
	assert.Equal(t, "shop-eu", cfg.RedisKeyPrefix)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown cart backend", "CART_BACKEND", "sqlite"},
		{"firestore without project", "CART_BACKEND", "firestore"},
		{"unknown orders backend", "ORDERS_BACKEND", "mysql"},
		{"razorpay without keys", "PAYMENT_PROVIDER", "razorpay"},
		{"unknown payment provider", "PAYMENT_PROVIDER", "stripe"},
		{"unknown stock policy", "STOCK_POLICY", "reject"},
		{"success rate out of range", "SIMULATED_SUCCESS_RATE", "101"},
		{"zero refresh concurrency", "PRICE_REFRESH_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
