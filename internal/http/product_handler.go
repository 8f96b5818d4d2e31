package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/soragold/giftshop/internal/catalog/domain"
	"go.uber.org/zap"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, f domain.Filters) ([]*domain.Product, error)
}

type ProductHandler struct {
	responder
	catalog ProductReader
	timeout time.Duration
}

func NewProductHandler(catalog ProductReader, timeout time.Duration, log *zap.Logger) *ProductHandler {
	return &ProductHandler{responder: responder{log: log}, catalog: catalog, timeout: timeout}
}

type ProductDTO struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	Category      string           `json:"category"`
	ImageURL      string           `json:"image_url"`
	InStock       bool             `json:"in_stock"`
	StockQuantity int              `json:"stock_quantity"`
	Rating        float64          `json:"rating"`
	ReviewCount   int              `json:"review_count"`
	Tags          []string         `json:"tags"`
	Features      []string         `json:"features"`
	CreatedAt     time.Time        `json:"created_at"`
}

type ProductListDTO struct {
	Products []ProductDTO `json:"products"`
	Count    int          `json:"count"`
}

func toProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Category:      p.CategoryID,
		ImageURL:      p.ImageURL,
		InStock:       p.InStock,
		StockQuantity: p.StockQuantity,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		Tags:          p.Tags,
		Features:      p.Features,
		CreatedAt:     p.CreatedAt,
	}
}

// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	products, err := h.catalog.ListProducts(ctx, domain.Filters{
		Query:        q.Get("query"),
		Category:     q.Get("category"),
		PriceRange:   q.Get("price_range"),
		Availability: q.Get("availability"),
		SortBy:       q.Get("sort_by"),
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	resp := ProductListDTO{Products: make([]ProductDTO, 0, len(products)), Count: len(products)}
	for _, p := range products {
		resp.Products = append(resp.Products, toProductDTO(p))
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toProductDTO(product))
}
