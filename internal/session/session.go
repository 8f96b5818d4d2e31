package session

import (
	"context"
	"sync"
	"time"

	"github.com/soragold/giftshop/internal/cart/store"
	"github.com/soragold/giftshop/internal/checkout/service"
	"github.com/soragold/giftshop/internal/identity"
)

// Session is the server-side state of one signed-in customer.
type Session struct {
	CustomerID string
	Holder     *identity.Holder
	Cart       *store.Store

	bind        sync.Once
	unsubscribe func()

	mu       sync.Mutex
	checkout *service.Flow
	lastSeen time.Time
}

func newSession(ctx context.Context, customerID string, cart *store.Store, now time.Time) *Session {
	s := &Session{
		CustomerID: customerID,
		Holder:     identity.NewHolder(),
		Cart:       cart,
		lastSeen:   now,
	}
	bindCtx := context.WithoutCancel(ctx)
	s.unsubscribe = s.Holder.Subscribe(func(id string) {
		cart.Bind(bindCtx, id)
	})
	return s
}

// activate signs the customer in exactly once; concurrent callers wait for the cart to load.
func (s *Session) activate() {
	s.bind.Do(func() { s.Holder.Set(s.CustomerID) })
}

func (s *Session) Checkout() *service.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkout
}

// paymentPending reports whether the session's checkout awaits a payment outcome.
func (s *Session) paymentPending() bool {
	flow := s.Checkout()
	return flow != nil && flow.Processing()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// close abandons any open checkout and signs the customer out, which discards the cart.
func (s *Session) close() {
	s.mu.Lock()
	flow := s.checkout
	s.checkout = nil
	s.mu.Unlock()

	if flow != nil && !flow.Status().IsTerminal() {
		_ = flow.Abandon()
	}
	s.Holder.Set("")
	s.unsubscribe()
}
