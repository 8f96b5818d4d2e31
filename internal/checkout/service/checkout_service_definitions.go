package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	cartdomain "github.com/soragold/giftshop/internal/cart/domain"
	catalogdomain "github.com/soragold/giftshop/internal/catalog/domain"
	d "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/payment"
	"go.uber.org/zap"
)

// CartStore is the live cart a checkout snapshots and clears.
type CartStore interface {
	Snapshot() (string, []cartdomain.LineItem, error)
	ClearCart(ctx context.Context) error
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
}

type OrderRecorder interface {
	RecordOrder(ctx context.Context, completed d.CompletedCheckout) (string, error)
}

type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithCurrency(currency string) Option {
	return func(s *Service) { s.currency = currency }
}

func WithDefaultCountry(country string) Option {
	return func(s *Service) { s.defaultCountry = country }
}

// WithMaxConcurrent bounds the catalog lookups made while snapshotting a cart.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTransitionObserver is called after every status change.
func WithTransitionObserver(fn func(from, to d.CheckoutStatus)) Option {
	return func(s *Service) { s.onTransition = fn }
}

// WithPaymentObserver is called with every resolved payment outcome.
func WithPaymentObserver(fn func(status payment.Status)) Option {
	return func(s *Service) { s.onPayment = fn }
}

type Service struct {
	catalog  ProductCatalog
	gateway  payment.Gateway
	recorder OrderRecorder

	log            *zap.Logger
	currency       string
	defaultCountry string
	maxConcurrent  int
	now            func() time.Time
	newID          func() string
	onTransition   func(from, to d.CheckoutStatus)
	onPayment      func(status payment.Status)
}

func NewService(catalog ProductCatalog, gateway payment.Gateway, recorder OrderRecorder, opts ...Option) *Service {
	s := &Service{
		catalog:        catalog,
		gateway:        gateway,
		recorder:       recorder,
		log:            zap.NewNop(),
		currency:       "INR",
		defaultCountry: "India",
		maxConcurrent:  4,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) transitioned(from, to d.CheckoutStatus) {
	if s.onTransition != nil {
		s.onTransition(from, to)
	}
}

func (s *Service) paymentResolved(status payment.Status) {
	if s.onPayment != nil {
		s.onPayment(status)
	}
}
