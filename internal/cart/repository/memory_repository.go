package repository

import (
	"context"
	"sync"
	"time"

	"github.com/soragold/giftshop/internal/cart/domain"
)

// MemoryRepository keeps snapshots in process memory. Used for development and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
		now:   time.Now,
	}
}

func (m *MemoryRepository) Load(_ context.Context, customerID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, ok := m.carts[customerID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (m *MemoryRepository) Save(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamp(cart, m.now())
	m.carts[cart.CustomerID] = cloneCart(cart)
	return nil
}

func (m *MemoryRepository) Clear(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, customerID)
	return nil
}

func (m *MemoryRepository) ClearIfUnmodifiedSince(_ context.Context, customerID string, t time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[customerID]
	if !ok || cart.UpdatedAt.After(t) {
		return false, nil
	}
	delete(m.carts, customerID)
	return true, nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = domain.CloneItems(c.Items)
	return &out
}
