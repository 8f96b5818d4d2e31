// Package poller clears carts once their checkout has been recorded as an order.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	r "github.com/soragold/giftshop/internal/cart/repository"
	"go.uber.org/zap"
)

const (
	Topic   = "checkout-outbox"
	GroupID = "cart-service-consumer"
)

// Evictor drops a live session whose cart has not changed since completedAt.
type Evictor interface {
	Evict(customerID string, completedAt time.Time) bool
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type checkoutCompleted struct {
	CheckoutID  string    `json:"checkout_id"`
	CustomerID  string    `json:"customer_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type Poller struct {
	repo     r.CartRepository
	sessions Evictor
	reader   messageReader
	log      *zap.Logger
	backoff  time.Duration
}

func NewPoller(repo r.CartRepository, sessions Evictor, log *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(repo, sessions, reader, log)
}

func newPoller(repo r.CartRepository, sessions Evictor, reader messageReader, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{repo: repo, sessions: sessions, reader: reader, log: log, backoff: time.Second}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.handleNext(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("error reading checkout event", zap.Error(err))
			select {
			case <-time.After(p.backoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

// handleNext returns an error only when reading from the broker failed.
// Malformed events are logged and skipped.
func (p *Poller) handleNext(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	var event checkoutCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Warn("error parsing checkout event", zap.String("key", string(m.Key)), zap.Error(err))
		return nil
	}
	if event.CustomerID == "" {
		p.log.Warn("checkout event without customer_id", zap.String("checkout_id", event.CheckoutID))
		return nil
	}
	completedAt := event.CompletedAt
	if completedAt.IsZero() {
		completedAt = m.Time
	}

	cleared, err := p.repo.ClearIfUnmodifiedSince(ctx, event.CustomerID, completedAt)
	if err != nil && !errors.Is(err, r.ErrCartNotFound) {
		p.log.Warn("failed to clear cart",
			zap.String("customer_id", event.CustomerID),
			zap.String("checkout_id", event.CheckoutID),
			zap.Error(err))
	}
	evicted := p.sessions.Evict(event.CustomerID, completedAt)

	p.log.Info("checkout event processed",
		zap.String("customer_id", event.CustomerID),
		zap.String("checkout_id", event.CheckoutID),
		zap.Bool("cart_cleared", cleared),
		zap.Bool("session_evicted", evicted))
	return nil
}
