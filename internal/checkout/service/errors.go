package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition   = errors.New("illegal transition of checkout status")
	ErrPaymentInProgress   = errors.New("payment is already in progress")
	ErrNoPaymentInProgress = errors.New("no payment in progress")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid shipping address: " + strings.Join(names, ", ")
}

type PaymentFailureKind string

const (
	PaymentFailed    PaymentFailureKind = "failed"
	PaymentCancelled PaymentFailureKind = "cancelled"
)

type PaymentError struct {
	Kind   PaymentFailureKind
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Kind == PaymentCancelled {
		return "payment cancelled"
	}
	if e.Reason != "" {
		return fmt.Sprintf("Payment failed: %v", e.Reason)
	}
	return "Payment failed"
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}
