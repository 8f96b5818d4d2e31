// Package store holds the live cart of one customer session.
//
// Every read-modify-write runs under a single mutex, so concurrent AddItem calls
// for the same product can never create two lines. Persistence happens after the
// mutex is released; writes are serialized and versioned per customer so a slow
// older save can never overwrite a newer one.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/soragold/giftshop/internal/cart/domain"
	"github.com/soragold/giftshop/internal/cart/repository"
	"go.uber.org/zap"
)

type Option func(*Store)

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func WithStockPolicy(p StockPolicy) Option {
	return func(s *Store) { s.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

type Store struct {
	mu           sync.Mutex
	customerID   string
	createdAt    time.Time
	items        []domain.LineItem
	open         bool
	persisted    bool
	version      uint64
	lastModified time.Time

	writeMu sync.Mutex
	written map[string]uint64 // customer -> last version handed to the repository

	subs subscribers

	repo   repository.CartRepository
	log    *zap.Logger
	policy StockPolicy
	now    func() time.Time
	newID  func() string
}

func New(repo repository.CartRepository, opts ...Option) *Store {
	s := &Store{
		repo:      repo,
		log:       zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		written:   make(map[string]uint64),
		persisted: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pendingWrite is the state captured under the mutex that persist will store.
type pendingWrite struct {
	customerID string
	items      []domain.LineItem
	createdAt  time.Time
	version    uint64
	clear      bool
}

// Bind switches the store to customerID. The previous cart is dropped from memory
// and the new customer's persisted snapshot is loaded. An empty customerID
// discards the cart without touching storage.
func (s *Store) Bind(ctx context.Context, customerID string) {
	s.mu.Lock()
	if customerID == s.customerID {
		s.mu.Unlock()
		return
	}

	previous := s.customerID
	s.customerID = customerID
	s.items = nil
	s.open = false
	s.createdAt = time.Time{}
	s.persisted = true
	s.version++
	s.lastModified = s.now()

	if customerID == "" {
		s.mu.Unlock()
		s.log.Debug("cart discarded", zap.String("customer_id", previous))
		s.subs.emit(Event{Kind: EventDiscarded, CustomerID: previous})
		return
	}

	// Load under the mutex so no mutation can interleave with it.
	var warning error
	cart, err := s.repo.Load(ctx, customerID)
	switch {
	case err == nil:
		s.items = domain.Normalize(customerID, cart.Items)
		s.createdAt = cart.CreatedAt
	case errors.Is(err, repository.ErrCartNotFound):
	default:
		warning = &PersistenceError{Op: "load", CustomerID: customerID, Err: err}
		s.persisted = false
		s.log.Warn("cart load failed, starting empty", zap.String("customer_id", customerID), zap.Error(err))
	}
	count := totalItems(s.items)
	s.mu.Unlock()

	s.subs.emit(Event{Kind: EventLoaded, CustomerID: customerID, ItemCount: count, Warning: warning})
}

func (s *Store) Customer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customerID == "" {
		return "", ErrNotAuthenticated
	}
	return s.customerID, nil
}

// AddItem increases the quantity of an existing line or appends a new one.
func (s *Store) AddItem(ctx context.Context, product domain.ProductSnapshot, quantity int) error {
	if product.ID == "" {
		return ErrInvalidProduct
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	if s.customerID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}

	if i := s.indexOf(product.ID); i >= 0 {
		q, err := s.policy.apply(product, s.items[i].Quantity+quantity)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.items[i].Product = product
		s.items[i].Quantity = q
	} else {
		q, err := s.policy.apply(product, quantity)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.items = append(s.items, domain.LineItem{
			ID:         s.newID(),
			CustomerID: s.customerID,
			ProductID:  product.ID,
			Product:    product,
			Quantity:   q,
			AddedAt:    s.now(),
		})
	}
	w := s.commitLocked(false)
	s.mu.Unlock()

	s.finish(ctx, w, EventItemAdded, product.ID)
	return nil
}

// RemoveItem deletes the line for productID. Removing an absent product is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	if s.customerID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}

	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	w := s.commitLocked(false)
	s.mu.Unlock()

	s.finish(ctx, w, EventItemRemoved, productID)
	return nil
}

// UpdateQuantity sets the quantity to exactly quantity. Zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	if s.customerID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}

	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	q, err := s.policy.apply(s.items[i].Product, quantity)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items[i].Quantity = q
	w := s.commitLocked(false)
	s.mu.Unlock()

	s.finish(ctx, w, EventQuantityUpdated, productID)
	return nil
}

// ClearCart empties the cart and removes the customer's persisted snapshot.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	if s.customerID == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.items = nil
	w := s.commitLocked(true)
	s.mu.Unlock()

	s.finish(ctx, w, EventCleared, "")
	return nil
}

func (s *Store) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.items)
}

// Subtotal uses the denormalized prices on the lines.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := decimal.Zero
	for _, item := range s.items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Items returns a copy of the lines in insertion order; empty when no customer is bound.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneItems(s.items)
}

// Snapshot returns the bound customer and a copy of the lines taken atomically.
func (s *Store) Snapshot() (string, []domain.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customerID == "" {
		return "", nil, ErrNotAuthenticated
	}
	return s.customerID, domain.CloneItems(s.items), nil
}

func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	changed := s.open != open
	s.open = open
	customer := s.customerID
	count := totalItems(s.items)
	s.mu.Unlock()

	if changed {
		s.subs.emit(Event{Kind: EventVisibility, CustomerID: customer, ItemCount: count})
	}
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Persisted is false while the in-memory cart differs from storage because a
// load or save failed.
func (s *Store) Persisted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted
}

func (s *Store) LastModified() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastModified
}

// Subscribe registers fn for change events and returns its unsubscribe func.
func (s *Store) Subscribe(fn func(Event)) func() {
	return s.subs.add(fn)
}

func (s *Store) indexOf(productID string) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) commitLocked(clear bool) pendingWrite {
	s.version++
	s.lastModified = s.now()
	return pendingWrite{
		customerID: s.customerID,
		items:      domain.CloneItems(s.items),
		createdAt:  s.createdAt,
		version:    s.version,
		clear:      clear,
	}
}

func (s *Store) finish(ctx context.Context, w pendingWrite, kind EventKind, productID string) {
	warning := s.persist(ctx, w)
	s.subs.emit(Event{
		Kind:       kind,
		CustomerID: w.customerID,
		ProductID:  productID,
		ItemCount:  totalItems(w.items),
		Warning:    warning,
	})
}

func (s *Store) persist(ctx context.Context, w pendingWrite) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if w.version <= s.written[w.customerID] {
		// a newer state for this customer has already been handed to storage
		return nil
	}
	s.written[w.customerID] = w.version

	var err error
	op := "save"
	if w.clear {
		op = "clear"
		err = s.repo.Clear(ctx, w.customerID)
	} else {
		cart := &domain.Cart{
			CustomerID: w.customerID,
			Items:      w.items,
			CreatedAt:  w.createdAt,
		}
		err = s.repo.Save(ctx, cart)
		if err == nil {
			s.rememberCreatedAt(w.customerID, cart.CreatedAt)
		}
	}

	s.mu.Lock()
	current := s.customerID == w.customerID && s.version == w.version
	if err != nil && s.customerID == w.customerID {
		s.persisted = false
	} else if err == nil && current {
		s.persisted = true
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("cart persistence failed, keeping in-memory state",
			zap.String("op", op),
			zap.String("customer_id", w.customerID),
			zap.Error(err))
		return &PersistenceError{Op: op, CustomerID: w.customerID, Err: err}
	}
	return nil
}

func (s *Store) rememberCreatedAt(customerID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customerID == customerID && s.createdAt.IsZero() {
		s.createdAt = t
	}
}

func totalItems(items []domain.LineItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
