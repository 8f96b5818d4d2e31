package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/soragold/giftshop/internal/checkout/domain"
)

type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
)

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID          uuid.UUID                      `json:"id"`
	CheckoutID  uuid.UUID                      `json:"checkout_id"`
	CustomerID  string                         `json:"customer_id"`
	Subtotal    decimal.Decimal                `json:"subtotal"`
	Tax         decimal.Decimal                `json:"tax"`
	Shipping    decimal.Decimal                `json:"shipping"`
	TotalAmount decimal.Decimal                `json:"total_amount"`
	AmountMinor int64                          `json:"amount_minor"`
	Currency    string                         `json:"currency"`
	Status      OrderStatus                    `json:"status"`
	PaymentRef  string                         `json:"payment_ref"`
	Provider    string                         `json:"provider"`
	Address     checkoutdomain.ShippingAddress `json:"address"`
	Items       []OrderItem                    `json:"items"`
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
}
