package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soragold/giftshop/internal/cart/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// abandonedCartTTL is how long an untouched cart snapshot survives in Mongo.
const abandonedCartTTL = 90 * 24 * time.Hour

type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
		now:        time.Now,
	}
}

func (m *MongoRepository) Load(ctx context.Context, customerID string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"customer_id": customerID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	return fromDocument(&doc)
}

func (m *MongoRepository) Save(ctx context.Context, cart *domain.Cart) error {
	stamp(cart, m.now().UTC().Truncate(time.Millisecond))
	doc := toDocument(cart)

	filter := bson.M{"customer_id": cart.CustomerID}
	update := bson.M{
		"$set": bson.M{
			"items":      doc.Items,
			"updated_at": doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"customer_id": doc.CustomerID,
			"created_at":  doc.CreatedAt,
		},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) Clear(ctx context.Context, customerID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"customer_id": customerID}); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) ClearIfUnmodifiedSince(ctx context.Context, customerID string, t time.Time) (bool, error) {
	filter := bson.M{
		"customer_id": customerID,
		"updated_at":  bson.M{"$lte": t},
	}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to clear stale cart: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(abandonedCartTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
