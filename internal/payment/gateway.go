// Package payment creates payment intents and resolves provider callbacks.
package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnavailable      = errors.New("payment gateway unavailable")
	ErrInvalidSignature = errors.New("payment signature mismatch")
	ErrIntentMismatch   = errors.New("callback does not belong to the outstanding intent")
	ErrInvalidAmount    = errors.New("payment amount must be positive")
	ErrUnknownCallback  = errors.New("unknown payment callback status")
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	Receipt        string
	IdempotencyKey string
}

// Intent is what the client needs to open the provider's payment sheet.
type Intent struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	KeyID       string    `json:"key_id,omitempty"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Receipt     string    `json:"receipt"`
	CreatedAt   time.Time `json:"created_at"`
}

// Callback is the client-reported result of the payment sheet.
type Callback struct {
	Status    Status `json:"status"`
	IntentID  string `json:"intent_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Signature string `json:"signature,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Outcome struct {
	Status     Status
	PaymentRef string
	Reason     string
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// Confirm turns a client callback into a trusted outcome. A non-nil error
	// means the outcome could not be established and the payment is treated as failed.
	Confirm(ctx context.Context, intent *Intent, cb Callback) (*Outcome, error)
}

func validateRequest(req IntentRequest) error {
	if req.AmountMinor <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// preflight handles the callback cases every provider treats the same way.
func preflight(intent *Intent, cb Callback) (*Outcome, bool, error) {
	if cb.IntentID != "" && cb.IntentID != intent.ID {
		return nil, true, ErrIntentMismatch
	}
	switch cb.Status {
	case StatusCancelled:
		return &Outcome{Status: StatusCancelled, Reason: cb.Reason}, true, nil
	case StatusFailed:
		reason := cb.Reason
		if reason == "" {
			reason = "payment declined"
		}
		return &Outcome{Status: StatusFailed, Reason: reason}, true, nil
	case StatusSucceeded:
		return nil, false, nil
	default:
		return nil, true, ErrUnknownCallback
	}
}
