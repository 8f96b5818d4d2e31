package store

import (
	"fmt"

	"github.com/soragold/giftshop/internal/cart/domain"
)

// StockPolicy decides what happens when a quantity exceeds the product's stock.
type StockPolicy int

const (
	// StockPolicyNone accepts any quantity.
	StockPolicyNone StockPolicy = iota
	// StockPolicyClamp caps quantities at the snapshot's stock and rejects
	// products with no stock.
	StockPolicyClamp
)

func ParseStockPolicy(s string) (StockPolicy, error) {
	switch s {
	case "none", "":
		return StockPolicyNone, nil
	case "clamp":
		return StockPolicyClamp, nil
	default:
		return StockPolicyNone, fmt.Errorf("unknown stock policy %q", s)
	}
}

func (p StockPolicy) String() string {
	if p == StockPolicyClamp {
		return "clamp"
	}
	return "none"
}

func (p StockPolicy) apply(product domain.ProductSnapshot, quantity int) (int, error) {
	if p != StockPolicyClamp {
		return quantity, nil
	}
	if product.StockQuantity <= 0 {
		return 0, ErrOutOfStock
	}
	return min(quantity, product.StockQuantity), nil
}
