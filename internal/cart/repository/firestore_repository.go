package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/soragold/giftshop/internal/cart/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreCartsCollection = "carts"

// FirestoreRepository stores one document per customer in the "carts" collection,
// keyed by customer id.
type FirestoreRepository struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client, now: time.Now}
}

func (f *FirestoreRepository) doc(customerID string) *firestore.DocumentRef {
	return f.client.Collection(firestoreCartsCollection).Doc(customerID)
}

func (f *FirestoreRepository) Load(ctx context.Context, customerID string) (*domain.Cart, error) {
	snap, err := f.doc(customerID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var doc cartDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return fromDocument(&doc)
}

func (f *FirestoreRepository) Save(ctx context.Context, cart *domain.Cart) error {
	stamp(cart, f.now().UTC())
	if _, err := f.doc(cart.CustomerID).Set(ctx, toDocument(cart)); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (f *FirestoreRepository) Clear(ctx context.Context, customerID string) error {
	if _, err := f.doc(customerID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

var errCartModified = errors.New("cart modified after cutoff")

func (f *FirestoreRepository) ClearIfUnmodifiedSince(ctx context.Context, customerID string, t time.Time) (bool, error) {
	ref := f.doc(customerID)
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrCartNotFound
			}
			return err
		}
		var doc cartDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.UpdatedAt.After(t) {
			return errCartModified
		}
		return tx.Delete(ref)
	})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrCartNotFound), errors.Is(err, errCartModified):
		return false, nil
	default:
		return false, fmt.Errorf("failed to clear stale cart: %w", err)
	}
}
