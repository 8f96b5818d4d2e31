package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidFilter = errors.New("invalid product filter")

const lowStockThreshold = 10

const (
	SortPopular   = "popular"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortName      = "name"
	SortNewest    = "newest"

	AvailabilityInStock  = "in-stock"
	AvailabilityLowStock = "low-stock"
)

// Filters narrows and orders the catalog listing. Empty fields and "all" match
// everything. An empty SortBy keeps catalog order; an unknown one sorts by popularity.
type Filters struct {
	Query        string
	Category     string
	PriceRange   string
	Availability string
	SortBy       string
}

type priceRange struct {
	min decimal.Decimal
	max *decimal.Decimal
}

// parsePriceRange accepts "min-max" or "min-" / "min" for an open upper bound.
// A zero max also means open, matching the storefront's range options.
func parsePriceRange(s string) (*priceRange, error) {
	if s == "" || s == "all" {
		return nil, nil
	}
	lo, hi, _ := strings.Cut(s, "-")

	minPrice, err := decimal.NewFromString(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("%w: price range %q", ErrInvalidFilter, s)
	}
	r := &priceRange{min: minPrice}

	if hi = strings.TrimSpace(hi); hi != "" {
		maxPrice, err := decimal.NewFromString(hi)
		if err != nil {
			return nil, fmt.Errorf("%w: price range %q", ErrInvalidFilter, s)
		}
		if !maxPrice.IsZero() {
			r.max = &maxPrice
		}
	}
	return r, nil
}

func (f Filters) Validate() error {
	if _, err := parsePriceRange(f.PriceRange); err != nil {
		return err
	}
	switch f.Availability {
	case "", "all", AvailabilityInStock, AvailabilityLowStock:
	default:
		return fmt.Errorf("%w: availability %q", ErrInvalidFilter, f.Availability)
	}
	return nil
}

// Apply returns the matching products in the requested order. The input slice is not modified.
func Apply(products []*Product, f Filters) ([]*Product, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	pr, _ := parsePriceRange(f.PriceRange)
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]*Product, 0, len(products))
	for _, p := range products {
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		if f.Category != "" && f.Category != "all" && p.CategoryID != f.Category {
			continue
		}
		if pr != nil {
			if p.Price.LessThan(pr.min) || (pr.max != nil && p.Price.GreaterThan(*pr.max)) {
				continue
			}
		}
		switch f.Availability {
		case AvailabilityInStock:
			if !p.InStock {
				continue
			}
		case AvailabilityLowStock:
			if !p.InStock || p.StockQuantity > lowStockThreshold {
				continue
			}
		}
		out = append(out, p)
	}

	if f.SortBy != "" {
		slices.SortStableFunc(out, comparator(f.SortBy))
	}
	return out, nil
}

func matchesQuery(p *Product, query string) bool {
	if strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Description), query) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func comparator(sortBy string) func(a, b *Product) int {
	switch sortBy {
	case SortPriceLow:
		return func(a, b *Product) int { return a.Price.Cmp(b.Price) }
	case SortPriceHigh:
		return func(a, b *Product) int { return b.Price.Cmp(a.Price) }
	case SortRating:
		return func(a, b *Product) int { return cmpFloat(b.Rating, a.Rating) }
	case SortName:
		return func(a, b *Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortNewest:
		return func(a, b *Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	default:
		return func(a, b *Product) int { return b.ReviewCount - a.ReviewCount }
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
