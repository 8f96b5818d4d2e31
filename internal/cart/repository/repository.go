package repository

import (
	"context"
	"errors"
	"time"

	"github.com/soragold/giftshop/internal/cart/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository persists one cart snapshot per customer.
type CartRepository interface {
	// Load returns ErrCartNotFound when the customer has no saved cart.
	Load(ctx context.Context, customerID string) (*domain.Cart, error)
	// Save replaces the customer's snapshot, stamping CreatedAt (if zero) and UpdatedAt.
	Save(ctx context.Context, cart *domain.Cart) error
	// Clear removes the snapshot; clearing a missing cart is not an error.
	Clear(ctx context.Context, customerID string) error
	// ClearIfUnmodifiedSince removes the snapshot only when it was last saved at or before t.
	ClearIfUnmodifiedSince(ctx context.Context, customerID string, t time.Time) (bool, error)
}

func stamp(cart *domain.Cart, now time.Time) {
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
}
