package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

// orderCreator is the part of the Razorpay orders API the gateway uses.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayGateway struct {
	orders orderCreator
	keyID  string
	secret string
	log    *zap.Logger
	now    func() time.Time
}

func NewRazorpayGateway(keyID, secret string, log *zap.Logger) *RazorpayGateway {
	client := razorpay.NewClient(keyID, secret)
	return newRazorpayGateway(client.Order, keyID, secret, log)
}

func newRazorpayGateway(orders orderCreator, keyID, secret string, log *zap.Logger) *RazorpayGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &RazorpayGateway{orders: orders, keyID: keyID, secret: secret, log: log, now: time.Now}
}

func (g *RazorpayGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"X-Razorpay-Idempotency": req.IdempotencyKey}
	}

	// the client has no context support; run it aside so cancellation still returns
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := g.orders.Create(data, headers)
		done <- result{body, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", res.err)
	}

	id, _ := res.body["id"].(string)
	if id == "" {
		return nil, errors.New("razorpay create order: response has no id")
	}
	g.log.Info("razorpay order created",
		zap.String("order_id", id),
		zap.Int64("amount_minor", req.AmountMinor),
		zap.String("receipt", req.Receipt))

	return &Intent{
		ID:          id,
		Provider:    "razorpay",
		KeyID:       g.keyID,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		CreatedAt:   g.now(),
	}, nil
}

// Confirm trusts a success callback only when its signature matches the order and payment ids.
func (g *RazorpayGateway) Confirm(_ context.Context, intent *Intent, cb Callback) (*Outcome, error) {
	if out, done, err := preflight(intent, cb); done {
		return out, err
	}
	if cb.PaymentID == "" || !VerifySignature(g.secret, intent.ID, cb.PaymentID, cb.Signature) {
		g.log.Warn("razorpay signature rejected",
			zap.String("order_id", intent.ID),
			zap.String("payment_id", cb.PaymentID))
		return nil, ErrInvalidSignature
	}
	return &Outcome{Status: StatusSucceeded, PaymentRef: cb.PaymentID}, nil
}
