package payment

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"github.com/soragold/giftshop/pkg/circuitbreaker"
	"go.uber.org/zap"
)

// BreakerGateway stops calling a failing provider until it recovers.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*Intent]
}

func WithBreaker(next Gateway, s circuitbreaker.Settings, log *zap.Logger) *BreakerGateway {
	return &BreakerGateway{next: next, cb: circuitbreaker.New[*Intent](s, log)}
}

func (b *BreakerGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	intent, err := b.cb.Execute(func() (*Intent, error) {
		return b.next.CreateIntent(ctx, req)
	})
	if circuitbreaker.IsOpen(err) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return intent, err
}

// Confirm is not guarded; a callback must always be resolvable.
func (b *BreakerGateway) Confirm(ctx context.Context, intent *Intent, cb Callback) (*Outcome, error) {
	return b.next.Confirm(ctx, intent, cb)
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}
