package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is the display copy of a product kept on a line item.
// Checkout refreshes the price from the catalog before computing totals.
type ProductSnapshot struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	ImageRef      string          `json:"image_ref,omitempty"`
	StockQuantity int             `json:"stock_quantity"`
}

type LineItem struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	ProductID  string          `json:"product_id"`
	Product    ProductSnapshot `json:"product"`
	Quantity   int             `json:"quantity"`
	AddedAt    time.Time       `json:"added_at"`
}

func (l LineItem) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the persisted per-customer snapshot.
type Cart struct {
	CustomerID string     `json:"customer_id"`
	Items      []LineItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// Normalize restores the line item invariants on data coming from storage:
// quantities below one are dropped, duplicate products are merged into the
// first occurrence and every item is stamped with the owning customer.
func Normalize(customerID string, items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.ProductID == "" {
			continue
		}
		item.CustomerID = customerID
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}
