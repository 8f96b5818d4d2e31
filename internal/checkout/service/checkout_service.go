package service

import (
	"context"
	"fmt"

	d "github.com/soragold/giftshop/internal/checkout/domain"
	"go.uber.org/zap"
)

// Begin freezes the cart into a new checkout. The cart itself is not touched.
func (s *Service) Begin(ctx context.Context, cart CartStore) (*Flow, error) {
	customerID, items, err := cart.Snapshot()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	snapshot, err := s.buildCartSnapshot(ctx, customerID, items)
	if err != nil {
		return nil, fmt.Errorf("failed to build cart snapshot: %w", err)
	}

	now := s.now()
	f := &Flow{
		svc:        s,
		cart:       cart,
		id:         s.newID(),
		customerID: customerID,
		snapshot:   *snapshot,
		address:    d.ShippingAddress{Country: s.defaultCountry},
		status:     d.CheckoutStatusCollectingShipping,
		createdAt:  now,
		updatedAt:  now,
	}

	s.log.Info("checkout started",
		zap.String("checkout_id", f.id),
		zap.String("customer_id", customerID),
		zap.Int("items", snapshot.ItemCount()),
		zap.String("grand_total", snapshot.Totals.GrandTotal.StringFixed(2)))
	s.transitioned("", d.CheckoutStatusCollectingShipping)
	return f, nil
}
