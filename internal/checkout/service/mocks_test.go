package service

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	cartdomain "github.com/soragold/giftshop/internal/cart/domain"
	"github.com/soragold/giftshop/internal/cart/repository"
	"github.com/soragold/giftshop/internal/cart/store"
	catalogdomain "github.com/soragold/giftshop/internal/catalog/domain"
	catalogrepo "github.com/soragold/giftshop/internal/catalog/repository"
	d "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/payment"
)

// MockCatalog implements ProductCatalog for testing
type MockCatalog struct {
	mu       sync.Mutex
	Products map[string]*catalogdomain.Product
	Err      error
	calls    int
}

func newMockCatalog() *MockCatalog {
	return &MockCatalog{Products: map[string]*catalogdomain.Product{
		"1": {ID: "1", Name: "Luxury Chocolate Collection", Price: decimal.RequireFromString("89.99"), InStock: true, StockQuantity: 50},
		"2": {ID: "2", Name: "Royal Rose Bouquet", Price: decimal.RequireFromString("64.99"), InStock: true, StockQuantity: 25},
		"3": {ID: "3", Name: "Elegant Jewelry Set", Price: decimal.RequireFromString("149.99"), InStock: true, StockQuantity: 15},
		"5": {ID: "5", Name: "Greeting Card", Price: decimal.RequireFromString("12.50"), InStock: true, StockQuantity: 100},
	}}
}

func (m *MockCatalog) GetProduct(_ context.Context, id string) (*catalogdomain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Products[id]
	if !ok {
		return nil, catalogrepo.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockCatalog) setPrice(id, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Products[id].Price = decimal.RequireFromString(price)
}

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	mu        sync.Mutex
	CreateErr error
	Outcome   *payment.Outcome
	ConfirmFn func(cb payment.Callback) (*payment.Outcome, error)
	Requests  []payment.IntentRequest
	block     chan struct{}
	started   chan struct{}
}

func (m *MockGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	block, started := m.block, m.started
	err := m.CreateErr
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &payment.Intent{
		ID:          "intent-" + req.Receipt,
		Provider:    "mock",
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
	}, nil
}

func (m *MockGateway) Confirm(_ context.Context, _ *payment.Intent, cb payment.Callback) (*payment.Outcome, error) {
	if m.ConfirmFn != nil {
		return m.ConfirmFn(cb)
	}
	switch cb.Status {
	case payment.StatusSucceeded:
		return &payment.Outcome{Status: payment.StatusSucceeded, PaymentRef: "pay_123"}, nil
	case payment.StatusCancelled:
		return &payment.Outcome{Status: payment.StatusCancelled}, nil
	case payment.StatusFailed:
		return &payment.Outcome{Status: payment.StatusFailed, Reason: "card declined"}, nil
	}
	return nil, payment.ErrUnknownCallback
}

func (m *MockGateway) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockRecorder implements OrderRecorder for testing
type MockRecorder struct {
	mu       sync.Mutex
	Err      error
	Recorded []d.CompletedCheckout
	started  chan struct{}
	block    chan struct{}
}

func (m *MockRecorder) RecordOrder(_ context.Context, c d.CompletedCheckout) (string, error) {
	if m.started != nil {
		close(m.started)
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Recorded = append(m.Recorded, c)
	return "order-" + c.CheckoutID, nil
}

var errBackendDown = errors.New("backend unavailable")

func snapshotOf(id, name, price string, stock int) cartdomain.ProductSnapshot {
	return cartdomain.ProductSnapshot{ID: id, Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock}
}

func newBoundStore(customerID string) *store.Store {
	s := store.New(repository.NewMemoryRepository())
	s.Bind(context.Background(), customerID)
	return s
}

func validAddress() d.ShippingAddress {
	return d.ShippingAddress{
		FirstName:  "Asha",
		LastName:   "Rao",
		Email:      "asha@example.com",
		Address:    "12 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "India",
	}
}
