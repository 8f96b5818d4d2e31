package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/soragold/giftshop/internal/pricing"
)

// CartSnapshotItem is a cart line with the price captured at checkout entry.
type CartSnapshotItem struct {
	LineItemID  string          `json:"line_item_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ImageRef    string          `json:"image_ref,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	// Missing marks a product the catalog no longer has; it is priced at zero.
	Missing bool `json:"missing,omitempty"`
}

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	CustomerID string             `json:"customer_id"`
	Items      []CartSnapshotItem `json:"items"`
	Totals     pricing.Totals     `json:"totals"`
	Currency   string             `json:"currency"`
	CapturedAt time.Time          `json:"captured_at"`
}

func (s *CartSnapshot) Lines() []pricing.Line {
	lines := make([]pricing.Line, len(s.Items))
	for i, item := range s.Items {
		lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	return lines
}

func (s *CartSnapshot) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

func (s *CartSnapshot) Clone() CartSnapshot {
	out := *s
	out.Items = make([]CartSnapshotItem, len(s.Items))
	copy(out.Items, s.Items)
	return out
}
