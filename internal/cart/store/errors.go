package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("no active customer identity")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidProduct   = errors.New("product id is required")
	ErrOutOfStock       = errors.New("product is out of stock")
)

// PersistenceError reports a failed load or save. It never fails the cart
// operation that triggered it; the in-memory cart stays authoritative.
type PersistenceError struct {
	Op         string
	CustomerID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cart %s for customer %s failed: %v", e.Op, e.CustomerID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
