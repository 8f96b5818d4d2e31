package cache

import (
	"context"
	"errors"

	"github.com/soragold/giftshop/internal/cart/domain"
)

// CartCache holds cart snapshots keyed by customer. Every Delete bumps the
// customer's generation; Set only stores a snapshot read at the current one.
type CartCache interface {
	Get(ctx context.Context, customerID string) (*domain.Cart, error)
	Generation(ctx context.Context, customerID string) (int64, error)
	Set(ctx context.Context, customerID string, cart *domain.Cart, generation int64) error
	Delete(ctx context.Context, customerID string) error
}

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrStaleGeneration = errors.New("cart invalidated since it was read")
)
