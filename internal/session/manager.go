// Package session maps signed-in customers to their cart and checkout.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/soragold/giftshop/internal/cart/store"
	"github.com/soragold/giftshop/internal/checkout/service"
	"go.uber.org/zap"
)

var (
	ErrCheckoutExists = errors.New("a checkout is already in progress")
	ErrNoCheckout     = errors.New("no checkout in progress")
)

type Option func(*Manager)

func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithIdleTTL evicts sessions and abandons checkouts untouched for ttl.
func WithIdleTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.idleTTL = ttl }
}

// WithSweepInterval sets how often the reaper runs; zero disables it.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) { m.sweepInterval = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithOnCreate runs fn for every new session before its cart is loaded.
func WithOnCreate(fn func(*Session)) Option {
	return func(m *Manager) { m.onCreate = fn }
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	newStore func() *store.Store
	checkout *service.Service
	log      *zap.Logger
	now      func() time.Time
	onCreate func(*Session)

	idleTTL       time.Duration
	sweepInterval time.Duration
	stopCleanup   chan struct{}
	wg            sync.WaitGroup
}

func NewManager(newStore func() *store.Store, checkout *service.Service, opts ...Option) *Manager {
	m := &Manager{
		sessions:      make(map[string]*Session),
		newStore:      newStore,
		checkout:      checkout,
		log:           zap.NewNop(),
		now:           time.Now,
		idleTTL:       30 * time.Minute,
		sweepInterval: 30 * time.Second,
		stopCleanup:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sweepInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m
}

// cleanupLoop periodically evicts idle sessions and abandons stale checkouts
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.expireIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) expireIdle() {
	if m.idleTTL <= 0 {
		return
	}
	cutoff := m.now().Add(-m.idleTTL)

	var expired []*Session
	m.mu.Lock()
	for id, sess := range m.sessions {
		// a payment round trip has no deadline; its session stays until it resolves
		if sess.idleSince().Before(cutoff) && !sess.paymentPending() {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	active := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		active = append(active, sess)
	}
	m.mu.Unlock()

	for _, sess := range expired {
		m.log.Info("evicting idle session", zap.String("customer_id", sess.CustomerID))
		sess.close()
	}
	for _, sess := range active {
		if flow := sess.Checkout(); flow != nil && flow.AbandonIdle(cutoff) {
			m.log.Info("abandoned idle checkout",
				zap.String("customer_id", sess.CustomerID),
				zap.String("checkout_id", flow.ID()))
		}
	}
}

// Acquire returns the customer's session, creating it and loading the persisted
// cart on first use.
func (m *Manager) Acquire(ctx context.Context, customerID string) (*Session, error) {
	if customerID == "" {
		return nil, store.ErrNotAuthenticated
	}
	now := m.now()

	m.mu.Lock()
	sess, ok := m.sessions[customerID]
	if !ok {
		sess = newSession(ctx, customerID, m.newStore(), now)
		m.sessions[customerID] = sess
	}
	m.mu.Unlock()

	if !ok {
		if m.onCreate != nil {
			m.onCreate(sess)
		}
		m.log.Debug("session created", zap.String("customer_id", customerID))
	}
	sess.activate()
	sess.touch(now)
	return sess, nil
}

// Logout drops the session: any checkout is abandoned and the cart is discarded
// from memory. The persisted cart is kept for the next sign-in.
func (m *Manager) Logout(_ context.Context, customerID string) {
	m.mu.Lock()
	sess, ok := m.sessions[customerID]
	delete(m.sessions, customerID)
	m.mu.Unlock()

	if ok {
		sess.close()
		m.log.Info("customer signed out", zap.String("customer_id", customerID))
	}
}

// Evict drops the live session of customerID unless its cart changed after
// completedAt. It reports whether a session was dropped.
func (m *Manager) Evict(customerID string, completedAt time.Time) bool {
	m.mu.Lock()
	sess, ok := m.sessions[customerID]
	if !ok || sess.Cart.LastModified().After(completedAt) {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, customerID)
	m.mu.Unlock()

	sess.close()
	return true
}

func (m *Manager) BeginCheckout(ctx context.Context, sess *Session) (*service.Flow, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.checkout != nil && !sess.checkout.Status().IsTerminal() {
		return nil, ErrCheckoutExists
	}

	flow, err := m.checkout.Begin(ctx, sess.Cart)
	if err != nil {
		return nil, err
	}
	flow.OnDone(func(f *service.Flow) { m.DiscardCheckout(sess, f) })
	sess.checkout = flow
	return flow, nil
}

func (m *Manager) Checkout(sess *Session) (*service.Flow, error) {
	flow := sess.Checkout()
	if flow == nil {
		return nil, ErrNoCheckout
	}
	return flow, nil
}

// DiscardCheckout forgets flow if it is still the session's current checkout.
func (m *Manager) DiscardCheckout(sess *Session, flow *service.Flow) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.checkout == flow {
		sess.checkout = nil
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the background reaper and waits for it to finish
func (m *Manager) Close() error {
	if m.sweepInterval > 0 {
		close(m.stopCleanup)
		m.wg.Wait()
	}
	return nil
}
