package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/soragold/giftshop/internal/cart/domain"
)

// cartDocument is the stored shape shared by the Mongo and Firestore backends.
// Prices are kept as decimal strings so no precision is lost.
type cartDocument struct {
	CustomerID string         `bson:"customer_id" firestore:"customer_id"`
	Items      []itemDocument `bson:"items" firestore:"items"`
	CreatedAt  time.Time      `bson:"created_at" firestore:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at" firestore:"updated_at"`
}

type itemDocument struct {
	ID            string    `bson:"id" firestore:"id"`
	ProductID     string    `bson:"product_id" firestore:"product_id"`
	Name          string    `bson:"name" firestore:"name"`
	Price         string    `bson:"price" firestore:"price"`
	ImageRef      string    `bson:"image_ref,omitempty" firestore:"image_ref,omitempty"`
	StockQuantity int       `bson:"stock_quantity" firestore:"stock_quantity"`
	Quantity      int       `bson:"quantity" firestore:"quantity"`
	AddedAt       time.Time `bson:"added_at" firestore:"added_at"`
}

func toDocument(cart *domain.Cart) cartDocument {
	doc := cartDocument{
		CustomerID: cart.CustomerID,
		Items:      make([]itemDocument, 0, len(cart.Items)),
		CreatedAt:  cart.CreatedAt,
		UpdatedAt:  cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, itemDocument{
			ID:            item.ID,
			ProductID:     item.ProductID,
			Name:          item.Product.Name,
			Price:         item.Product.Price.String(),
			ImageRef:      item.Product.ImageRef,
			StockQuantity: item.Product.StockQuantity,
			Quantity:      item.Quantity,
			AddedAt:       item.AddedAt,
		})
	}
	return doc
}

func fromDocument(doc *cartDocument) (*domain.Cart, error) {
	cart := &domain.Cart{
		CustomerID: doc.CustomerID,
		Items:      make([]domain.LineItem, 0, len(doc.Items)),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for product %s: %w", item.Price, item.ProductID, err)
		}
		cart.Items = append(cart.Items, domain.LineItem{
			ID:         item.ID,
			CustomerID: doc.CustomerID,
			ProductID:  item.ProductID,
			Product: domain.ProductSnapshot{
				ID:            item.ProductID,
				Name:          item.Name,
				Price:         price,
				ImageRef:      item.ImageRef,
				StockQuantity: item.StockQuantity,
			},
			Quantity: item.Quantity,
			AddedAt:  item.AddedAt,
		})
	}
	return cart, nil
}
