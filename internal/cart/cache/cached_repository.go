package cache

import (
	"context"
	"errors"
	"time"

	"github.com/soragold/giftshop/internal/cart/domain"
	"github.com/soragold/giftshop/internal/cart/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedRepository is a read-through cache in front of a cart repository.
// Writes go to the repository first and then invalidate the cached entry.
type CachedRepository struct {
	repo  repository.CartRepository
	cache CartCache
	log   *zap.Logger
	sfg   singleflight.Group
}

func NewCachedRepository(repo repository.CartRepository, cache CartCache, log *zap.Logger) *CachedRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedRepository{repo: repo, cache: cache, log: log}
}

func (c *CachedRepository) Load(ctx context.Context, customerID string) (*domain.Cart, error) {
	// concurrent misses for one customer share a single repository read
	v, err, _ := c.sfg.Do(customerID, func() (interface{}, error) {
		cart, err := c.cache.Get(ctx, customerID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("cart cache get failed", zap.String("customer_id", customerID), zap.Error(err))
		}

		// the generation is read before storage so an invalidation racing this
		// load keeps its snapshot out of the cache
		gen, genErr := c.cache.Generation(ctx, customerID)

		cart, err = c.repo.Load(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if genErr != nil {
			c.log.Warn("cart cache generation failed", zap.String("customer_id", customerID), zap.Error(genErr))
			return cart, nil
		}

		switch err := c.cache.Set(ctx, customerID, cart, gen); {
		case errors.Is(err, ErrStaleGeneration):
			c.log.Debug("cart invalidated during load, not caching", zap.String("customer_id", customerID))
		case err != nil:
			c.log.Warn("cart cache set failed", zap.String("customer_id", customerID), zap.Error(err))
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share the slice
	shared := v.(*domain.Cart)
	out := *shared
	out.Items = domain.CloneItems(shared.Items)
	return &out, nil
}

func (c *CachedRepository) Save(ctx context.Context, cart *domain.Cart) error {
	if err := c.repo.Save(ctx, cart); err != nil {
		return err
	}
	c.invalidate(cart.CustomerID)
	return nil
}

func (c *CachedRepository) Clear(ctx context.Context, customerID string) error {
	if err := c.repo.Clear(ctx, customerID); err != nil {
		return err
	}
	c.invalidate(customerID)
	return nil
}

func (c *CachedRepository) ClearIfUnmodifiedSince(ctx context.Context, customerID string, t time.Time) (bool, error) {
	cleared, err := c.repo.ClearIfUnmodifiedSince(ctx, customerID, t)
	if err != nil {
		return false, err
	}
	if cleared {
		c.invalidate(customerID)
	}
	return cleared, nil
}

func (c *CachedRepository) invalidate(customerID string) {
	// later loads must not join a flight that read storage before the write
	c.sfg.Forget(customerID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.cache.Delete(ctx, customerID); err != nil {
		c.log.Warn("cart cache invalidate failed", zap.String("customer_id", customerID), zap.Error(err))
	}
}
