package domain

import (
	"time"

	"github.com/shopspring/decimal"
	cartdomain "github.com/soragold/giftshop/internal/cart/domain"
)

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	CategoryID    string           `json:"category_id"`
	ImageURL      string           `json:"image_url"`
	InStock       bool             `json:"in_stock"`
	StockQuantity int              `json:"stock_quantity"`
	Rating        float64          `json:"rating"`
	ReviewCount   int              `json:"review_count"`
	Tags          []string         `json:"tags"`
	Features      []string         `json:"features"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Snapshot is the denormalized copy stored on a cart line.
func (p *Product) Snapshot() cartdomain.ProductSnapshot {
	stock := p.StockQuantity
	if !p.InStock {
		stock = 0
	}
	return cartdomain.ProductSnapshot{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		ImageRef:      p.ImageURL,
		StockQuantity: stock,
	}
}
