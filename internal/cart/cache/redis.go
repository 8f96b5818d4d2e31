package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soragold/giftshop/internal/cart/domain"
)

const (
	DefaultKeyPrefix = "giftshop"
	defaultBaseTTL   = 15 * time.Minute
	defaultJitter    = 5 * time.Minute
)

type RedisOption func(*RedisCache)

// WithKeyPrefix namespaces every key so several storefronts can share one Redis.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisCache) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func WithTTL(base, maxJitter time.Duration) RedisOption {
	return func(r *RedisCache) {
		r.baseTTL = base
		r.maxJitter = maxJitter
	}
}

// RedisCache stores JSON cart snapshots under "<prefix>:cart:<customer>" with a
// jittered TTL so entries written together do not expire together. The
// invalidation counter lives under "<prefix>:cart-gen:<customer>".
type RedisCache struct {
	client    redis.UniversalClient
	prefix    string
	baseTTL   time.Duration
	maxJitter time.Duration
}

func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	r := &RedisCache{
		client:    client,
		prefix:    DefaultKeyPrefix,
		baseTTL:   defaultBaseTTL,
		maxJitter: defaultJitter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisCache) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, r.cartKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisCache) Generation(ctx context.Context, customerID string) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey(customerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// Set writes cart only while the customer's generation still equals generation.
// The check and the write run in one WATCH transaction, so a Delete from any
// replica in between makes Set return ErrStaleGeneration.
func (r *RedisCache) Set(ctx context.Context, customerID string, cart *domain.Cart, generation int64) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	genKey := r.genKey(customerID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return ErrStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.cartKey(customerID), payload, r.ttl())
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return ErrStaleGeneration
	default:
		return fmt.Errorf("redis set failed: %w", err)
	}
}

// Delete drops the snapshot and bumps the generation so in-flight loads cannot
// write back what they read before it.
func (r *RedisCache) Delete(ctx context.Context, customerID string) error {
	genKey := r.genKey(customerID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.cartKey(customerID))
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, r.genTTL())
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCache) ttl() time.Duration {
	if r.maxJitter <= 0 {
		return r.baseTTL
	}
	return r.baseTTL + rand.N(r.maxJitter)
}

// genTTL outlives any snapshot so a counter never resets under a live entry.
func (r *RedisCache) genTTL() time.Duration {
	return 2 * (r.baseTTL + r.maxJitter)
}

func (r *RedisCache) cartKey(customerID string) string {
	return fmt.Sprintf("%s:cart:%s", r.prefix, customerID)
}

func (r *RedisCache) genKey(customerID string) string {
	return fmt.Sprintf("%s:cart-gen:%s", r.prefix, customerID)
}
