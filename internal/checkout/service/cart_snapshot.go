package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	cartdomain "github.com/soragold/giftshop/internal/cart/domain"
	catalogrepo "github.com/soragold/giftshop/internal/catalog/repository"
	d "github.com/soragold/giftshop/internal/checkout/domain"
	"github.com/soragold/giftshop/internal/pricing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// buildCartSnapshot copies the cart lines and refreshes each unit price from the catalog.
// A product the catalog no longer has is priced at zero and flagged missing; any other
// lookup error keeps the price stored on the line.
func (s *Service) buildCartSnapshot(ctx context.Context, customerID string, items []cartdomain.LineItem) (*d.CartSnapshot, error) {
	lines := make([]d.CartSnapshotItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range items {
		g.Go(func() error {
			item := items[idx]
			line := d.CartSnapshotItem{
				LineItemID:  item.ID,
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				ImageRef:    item.Product.ImageRef,
				Quantity:    item.Quantity,
				UnitPrice:   item.Product.Price,
			}

			product, err := s.catalog.GetProduct(gctx, item.ProductID)
			switch {
			case err == nil:
				line.UnitPrice = product.Price
				line.ProductName = product.Name
			case errors.Is(err, catalogrepo.ErrProductNotFound):
				line.UnitPrice = decimal.Zero
				line.Missing = true
				s.log.Warn("product missing from catalog, pricing at zero",
					zap.String("customer_id", customerID),
					zap.String("product_id", item.ProductID))
			case gctx.Err() != nil:
				return fmt.Errorf("failed to get product %s: %w", item.ProductID, err)
			default:
				s.log.Warn("catalog lookup failed, keeping cart price",
					zap.String("customer_id", customerID),
					zap.String("product_id", item.ProductID),
					zap.Error(err))
			}

			line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			lines[idx] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := &d.CartSnapshot{
		CustomerID: customerID,
		Items:      lines,
		Currency:   s.currency,
		CapturedAt: s.now(),
	}
	snapshot.Totals = pricing.Compute(snapshot.Lines())
	return snapshot, nil
}
