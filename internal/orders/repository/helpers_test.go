package repository

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	checkoutdomain "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/orders/domain"
)

func newTestOrder(checkoutID uuid.UUID) *domain.Order {
	price := decimal.RequireFromString("149.99")
	return &domain.Order{
		ID:          uuid.New(),
		CheckoutID:  checkoutID,
		CustomerID:  "user-123",
		Subtotal:    price,
		Tax:         decimal.RequireFromString("12.00"),
		Shipping:    decimal.Zero,
		TotalAmount: decimal.RequireFromString("161.99"),
		AmountMinor: 16199,
		Currency:    "INR",
		Status:      domain.OrderStatusConfirmed,
		PaymentRef:  "pay_test",
		Provider:    "simulated",
		Address:     checkoutdomain.ShippingAddress{FirstName: "Asha", City: "Bengaluru", Country: "India"},
		Items: []domain.OrderItem{
			{ProductID: "3", ProductName: "Elegant Jewelry Set", Quantity: 1, Price: price, Subtotal: price},
		},
	}
}
