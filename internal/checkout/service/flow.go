package service

import (
	"context"
	"errors"
	"sync"
	"time"

	d "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/payment"
	"github.com/soragold/giftshop/internal/pricing"
	"go.uber.org/zap"
)

// Flow is one customer's checkout. All methods are safe for concurrent use.
type Flow struct {
	svc  *Service
	cart CartStore

	mu         sync.Mutex
	id         string
	customerID string
	snapshot   d.CartSnapshot
	address    d.ShippingAddress
	status     d.CheckoutStatus
	processing bool
	intent     *payment.Intent
	idemKey    string
	lastErr    string
	orderID    string
	paymentRef string
	createdAt  time.Time
	updatedAt  time.Time
	onDone     []func(*Flow)
}

type View struct {
	ID          string               `json:"id"`
	CustomerID  string               `json:"customer_id"`
	Status      d.CheckoutStatus     `json:"status"`
	Step        int                  `json:"step"`
	Address     d.ShippingAddress    `json:"address"`
	Items       []d.CartSnapshotItem `json:"items"`
	Totals      pricing.Totals       `json:"totals"`
	AmountMinor int64                `json:"amount_minor"`
	Currency    string               `json:"currency"`
	Processing  bool                 `json:"processing"`
	Intent      *payment.Intent      `json:"intent,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	OrderID     string               `json:"order_id,omitempty"`
	PaymentRef  string               `json:"payment_ref,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func (f *Flow) ID() string {
	return f.id
}

func (f *Flow) CustomerID() string {
	return f.customerID
}

func (f *Flow) Status() d.CheckoutStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Processing reports whether a payment intent is outstanding.
func (f *Flow) Processing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processing
}

func (f *Flow) LastActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updatedAt
}

// OnDone registers fn to run once the flow completes or is abandoned.
func (f *Flow) OnDone(fn func(*Flow)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDone = append(f.onDone, fn)
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Flow) viewLocked() View {
	snap := f.snapshot.Clone()
	var intent *payment.Intent
	if f.intent != nil {
		cp := *f.intent
		intent = &cp
	}
	return View{
		ID:          f.id,
		CustomerID:  f.customerID,
		Status:      f.status,
		Step:        f.status.Step(),
		Address:     f.address,
		Items:       snap.Items,
		Totals:      snap.Totals,
		AmountMinor: snap.Totals.MinorUnits(),
		Currency:    snap.Currency,
		Processing:  f.processing,
		Intent:      intent,
		LastError:   f.lastErr,
		OrderID:     f.orderID,
		PaymentRef:  f.paymentRef,
		CreatedAt:   f.createdAt,
		UpdatedAt:   f.updatedAt,
	}
}

// SubmitShipping validates addr and moves on to order review. An invalid address
// leaves the flow where it was.
func (f *Flow) SubmitShipping(addr d.ShippingAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != d.CheckoutStatusCollectingShipping {
		return ErrIllegalTransition
	}
	if fields := addr.Validate(); fields != nil {
		return &ValidationError{Fields: fields}
	}
	f.address = addr
	f.transitionLocked(d.CheckoutStatusReviewingOrder)
	return nil
}

// Back returns from review to the address form, keeping the entered address.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.processing {
		return ErrPaymentInProgress
	}
	if f.status != d.CheckoutStatusReviewingOrder {
		return ErrIllegalTransition
	}
	f.transitionLocked(d.CheckoutStatusCollectingShipping)
	return nil
}

// SubmitPayment creates a payment intent for the frozen grand total. A repeat call
// carrying the key of the outstanding intent returns that intent again.
func (f *Flow) SubmitPayment(ctx context.Context, idempotencyKey string) (*payment.Intent, error) {
	f.mu.Lock()
	if f.processing {
		defer f.mu.Unlock()
		if idempotencyKey != "" && idempotencyKey == f.idemKey && f.intent != nil {
			cp := *f.intent
			return &cp, nil
		}
		return nil, ErrPaymentInProgress
	}
	if f.status != d.CheckoutStatusReviewingOrder {
		f.mu.Unlock()
		return nil, ErrIllegalTransition
	}

	f.processing = true
	f.idemKey = idempotencyKey
	f.lastErr = ""
	f.updatedAt = f.svc.now()
	req := payment.IntentRequest{
		AmountMinor:    f.snapshot.Totals.MinorUnits(),
		Currency:       f.snapshot.Currency,
		Receipt:        f.id,
		IdempotencyKey: idempotencyKey,
	}
	f.mu.Unlock()

	intent, err := f.svc.gateway.CreateIntent(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != d.CheckoutStatusReviewingOrder {
		// abandoned while the gateway was busy
		f.processing = false
		return nil, ErrIllegalTransition
	}
	if err != nil {
		f.svc.log.Warn("payment intent creation failed",
			zap.String("checkout_id", f.id),
			zap.Error(err))
		return nil, f.failLocked(PaymentFailed, err.Error(), err)
	}

	f.intent = intent
	f.svc.log.Info("payment intent created",
		zap.String("checkout_id", f.id),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_minor", intent.AmountMinor))
	cp := *intent
	return &cp, nil
}

// ResolvePayment applies the outcome of the payment sheet. On success the live
// cart is cleared, the order is recorded and the flow completes. On failure or
// cancellation the flow returns to review with the cart untouched and a
// *PaymentError is returned.
func (f *Flow) ResolvePayment(ctx context.Context, cb payment.Callback) (View, error) {
	f.mu.Lock()

	if !f.processing || f.intent == nil {
		f.mu.Unlock()
		return View{}, ErrNoPaymentInProgress
	}

	outcome, err := f.svc.gateway.Confirm(ctx, f.intent, cb)
	if errors.Is(err, payment.ErrIntentMismatch) || errors.Is(err, payment.ErrUnknownCallback) {
		// not an answer for this intent; the payment stays outstanding
		f.mu.Unlock()
		return View{}, err
	}
	if err != nil {
		f.svc.log.Warn("payment confirmation rejected",
			zap.String("checkout_id", f.id),
			zap.Error(err))
		outcome = &payment.Outcome{Status: payment.StatusFailed, Reason: err.Error()}
	}
	f.svc.paymentResolved(outcome.Status)

	switch outcome.Status {
	case payment.StatusSucceeded:
	case payment.StatusCancelled:
		perr := f.failLocked(PaymentCancelled, outcome.Reason, nil)
		view := f.viewLocked()
		f.mu.Unlock()
		return view, perr
	default:
		perr := f.failLocked(PaymentFailed, outcome.Reason, err)
		view := f.viewLocked()
		f.mu.Unlock()
		return view, perr
	}

	// clearing the cart and completing happen together under the lock
	f.clearCartLocked(ctx)
	f.processing = false
	f.paymentRef = outcome.PaymentRef
	f.transitionLocked(d.CheckoutStatusCompleted)

	completed := d.CompletedCheckout{
		CheckoutID:  f.id,
		CustomerID:  f.customerID,
		Items:       f.snapshot.Clone().Items,
		Totals:      f.snapshot.Totals,
		Address:     f.address,
		PaymentRef:  outcome.PaymentRef,
		Provider:    f.intent.Provider,
		Currency:    f.snapshot.Currency,
		AmountMinor: f.snapshot.Totals.MinorUnits(),
		CompletedAt: f.updatedAt,
	}
	done := f.onDone
	f.onDone = nil
	f.mu.Unlock()

	// orderID is only written here, after the flow is terminal
	var orderID string
	if f.svc.recorder != nil {
		id, err := f.svc.recorder.RecordOrder(ctx, completed)
		if err != nil {
			f.svc.log.Error("order recording failed after successful payment",
				zap.String("checkout_id", f.id),
				zap.String("payment_ref", outcome.PaymentRef),
				zap.Error(err))
		} else {
			orderID = id
		}
	}
	f.svc.log.Info("checkout completed",
		zap.String("checkout_id", f.id),
		zap.String("customer_id", f.customerID),
		zap.String("order_id", orderID))

	f.mu.Lock()
	f.orderID = orderID
	view := f.viewLocked()
	f.mu.Unlock()

	for _, fn := range done {
		fn(f)
	}
	return view, nil
}

// Abandon ends the checkout without touching the cart.
func (f *Flow) Abandon() error {
	f.mu.Lock()
	if f.status.IsTerminal() {
		f.mu.Unlock()
		return ErrIllegalTransition
	}
	f.abandonAndUnlock()
	return nil
}

// AbandonIdle abandons the flow only if it has not moved since cutoff and no
// payment is outstanding. It reports whether the flow was abandoned.
func (f *Flow) AbandonIdle(cutoff time.Time) bool {
	f.mu.Lock()
	if f.status.IsTerminal() || f.processing || !f.updatedAt.Before(cutoff) {
		f.mu.Unlock()
		return false
	}
	f.abandonAndUnlock()
	return true
}

// abandonAndUnlock must be called with f.mu held.
func (f *Flow) abandonAndUnlock() {
	f.processing = false
	f.intent = nil
	f.transitionLocked(d.CheckoutStatusAbandoned)
	done := f.onDone
	f.onDone = nil
	f.mu.Unlock()

	f.svc.log.Info("checkout abandoned", zap.String("checkout_id", f.id))
	for _, fn := range done {
		fn(f)
	}
}

// clearCartLocked empties the live cart if it still belongs to this checkout's customer.
func (f *Flow) clearCartLocked(ctx context.Context) {
	current, _, err := f.cart.Snapshot()
	if err != nil || current != f.customerID {
		f.svc.log.Warn("cart no longer bound to checkout customer, skipping clear",
			zap.String("checkout_id", f.id),
			zap.String("customer_id", f.customerID))
		return
	}
	if err := f.cart.ClearCart(ctx); err != nil {
		f.svc.log.Warn("failed to clear cart after payment",
			zap.String("checkout_id", f.id),
			zap.Error(err))
	}
}

// failLocked records a failed attempt and returns the flow to review.
func (f *Flow) failLocked(kind PaymentFailureKind, reason string, cause error) *PaymentError {
	f.processing = false
	f.intent = nil
	f.idemKey = ""
	if kind == PaymentCancelled {
		f.lastErr = "payment cancelled"
	} else {
		f.lastErr = reason
	}
	f.transitionLocked(d.CheckoutStatusFailed)
	f.transitionLocked(d.CheckoutStatusReviewingOrder)
	return &PaymentError{Kind: kind, Reason: reason, Err: cause}
}

func (f *Flow) transitionLocked(to d.CheckoutStatus) {
	from := f.status
	if !d.CanTransitionTo(from, to) {
		f.svc.log.Error("refusing illegal checkout transition",
			zap.String("checkout_id", f.id),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		return
	}
	f.status = to
	f.updatedAt = f.svc.now()
	f.svc.transitioned(from, to)
}
