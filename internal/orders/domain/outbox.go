package domain

import (
	"encoding/json"
	"time"
)

const EventCheckoutCompleted = "checkout.completed"

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// CheckoutCompletedEvent is the payload published for every recorded order.
type CheckoutCompletedEvent struct {
	CheckoutID  string      `json:"checkout_id"`
	OrderID     string      `json:"order_id"`
	CustomerID  string      `json:"customer_id"`
	Items       []OrderItem `json:"items"`
	TotalAmount string      `json:"total_amount"`
	AmountMinor int64       `json:"amount_minor"`
	Currency    string      `json:"currency"`
	CompletedAt time.Time   `json:"completed_at"`
}

func NewCheckoutCompletedEvent(order *Order, completedAt time.Time) (*OutboxEvent, error) {
	payload, err := json.Marshal(CheckoutCompletedEvent{
		CheckoutID:  order.CheckoutID.String(),
		OrderID:     order.ID.String(),
		CustomerID:  order.CustomerID,
		Items:       order.Items,
		TotalAmount: order.TotalAmount.StringFixed(2),
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		CompletedAt: completedAt,
	})
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		AggregateID: order.CheckoutID.String(),
		EventType:   EventCheckoutCompleted,
		Payload:     payload,
	}, nil
}
