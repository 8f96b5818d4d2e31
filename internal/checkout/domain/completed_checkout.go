package domain

import (
	"time"

	"github.com/soragold/giftshop/internal/pricing"
)

// CompletedCheckout is handed to the order recorder after a successful payment.
type CompletedCheckout struct {
	CheckoutID  string             `json:"checkout_id"`
	CustomerID  string             `json:"customer_id"`
	Items       []CartSnapshotItem `json:"items"`
	Totals      pricing.Totals     `json:"totals"`
	Address     ShippingAddress    `json:"address"`
	PaymentRef  string             `json:"payment_ref"`
	Provider    string             `json:"provider"`
	Currency    string             `json:"currency"`
	AmountMinor int64              `json:"amount_minor"`
	CompletedAt time.Time          `json:"completed_at"`
}
