package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	checkoutdomain "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/orders/domain"
	"github.com/soragold/giftshop/internal/orders/repository"
	"go.uber.org/zap"
)

type Service struct {
	repo repository.OrderRepository
	log  *zap.Logger
}

func NewService(repo repository.OrderRepository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

// RecordOrder persists a completed checkout as a confirmed order together with its
// checkout.completed outbox event. Recording the same checkout twice returns the
// existing order id.
func (s *Service) RecordOrder(ctx context.Context, c checkoutdomain.CompletedCheckout) (string, error) {
	checkoutID, err := uuid.Parse(c.CheckoutID)
	if err != nil {
		return "", fmt.Errorf("invalid checkout_id %q: %w", c.CheckoutID, err)
	}

	items := make([]domain.OrderItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.UnitPrice,
			Subtotal:    item.Subtotal,
		}
	}

	order := &domain.Order{
		ID:          uuid.New(),
		CheckoutID:  checkoutID,
		CustomerID:  c.CustomerID,
		Subtotal:    c.Totals.Subtotal,
		Tax:         c.Totals.Tax,
		Shipping:    c.Totals.Shipping,
		TotalAmount: c.Totals.GrandTotal,
		AmountMinor: c.AmountMinor,
		Currency:    c.Currency,
		Status:      domain.OrderStatusConfirmed,
		PaymentRef:  c.PaymentRef,
		Provider:    c.Provider,
		Address:     c.Address,
		Items:       items,
	}

	event, err := domain.NewCheckoutCompletedEvent(order, c.CompletedAt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout payload: %w", err)
	}

	if err := s.repo.CreateOrder(ctx, order, event); err != nil {
		if errors.Is(err, repository.ErrDuplicateCheckout) {
			existing, getErr := s.repo.GetOrderByCheckoutID(ctx, checkoutID)
			if getErr != nil {
				return "", fmt.Errorf("lookup duplicate order: %w", getErr)
			}
			s.log.Info("order for checkout already exists, skipping",
				zap.String("checkout_id", c.CheckoutID),
				zap.String("order_id", existing.ID.String()))
			return existing.ID.String(), nil
		}
		return "", err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("checkout_id", c.CheckoutID),
		zap.String("customer_id", c.CustomerID),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	return order.ID.String(), nil
}

func (s *Service) ListOrders(ctx context.Context, customerID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByCustomer(ctx, customerID)
}

// GetOrder returns the order only when it belongs to customerID.
func (s *Service) GetOrder(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, repository.ErrOrderNotFound
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}
