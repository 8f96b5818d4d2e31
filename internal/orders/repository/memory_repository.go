package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soragold/giftshop/internal/orders/domain"
)

// MemoryRepository keeps orders and outbox events in process.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
	byCO   map[uuid.UUID]uuid.UUID
	events []*domain.OutboxEvent
	nextID int64
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[uuid.UUID]*domain.Order),
		byCO:   make(map[uuid.UUID]uuid.UUID),
		now:    time.Now,
	}
}

func (m *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCO[order.CheckoutID]; ok {
		return ErrDuplicateCheckout
	}
	now := m.now()
	order.CreatedAt, order.UpdatedAt = now, now
	m.orders[order.ID] = cloneOrder(order)
	m.byCO[order.CheckoutID] = order.ID

	if event != nil {
		m.nextID++
		event.ID = m.nextID
		event.CreatedAt = now
		cp := *event
		m.events = append(m.events, &cp)
	}
	return nil
}

func (m *MemoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (m *MemoryRepository) GetOrderByCheckoutID(ctx context.Context, checkoutID uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	id, ok := m.byCO[checkoutID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return m.GetOrderByID(ctx, id)
}

func (m *MemoryRepository) ListOrdersByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Order
	for _, order := range m.orders {
		if order.CustomerID == customerID {
			out = append(out, cloneOrder(order))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if e.ProcessedAt != nil {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			now := m.now()
			e.ProcessedAt = &now
		}
	}
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	return &cp
}
