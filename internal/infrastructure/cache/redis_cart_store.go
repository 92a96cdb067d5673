package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
)

const (
	cartKeyPrefix         = "cart:"
	maxCartUpdateAttempts = 16
)

// RedisCartStore keeps each cart as one JSON document under cart:<user_id>.
// Every write refreshes the TTL so idle carts expire.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore creates a cart store on client
func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func cartKey(userID uuid.UUID) string {
	return cartKeyPrefix + userID.String()
}

// Get loads the cart for userID, returning an empty cart when none is stored
func (s *RedisCartStore) Get(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return decodeCart(userID, s.client.Get(ctx, cartKey(userID)))
}

func decodeCart(userID uuid.UUID, cmd *redis.StringCmd) (*cart.Cart, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.New(userID), nil
	}
	if err != nil {
		return nil, shared.ErrPersistence.Wrap(fmt.Errorf("redis get cart: %w", err))
	}

	c := cart.New(userID)
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, shared.ErrPersistence.Wrap(fmt.Errorf("decode cart: %w", err))
	}
	c.UserID = userID
	if c.Lines == nil {
		c.Lines = make([]cart.Line, 0)
	}
	return c, nil
}

func encodeCart(c *cart.Cart) ([]byte, error) {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, shared.ErrPersistence.Wrap(fmt.Errorf("encode cart: %w", err))
	}
	return raw, nil
}

// Save replaces the stored cart
func (s *RedisCartStore) Save(ctx context.Context, c *cart.Cart) error {
	raw, err := encodeCart(c)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, cartKey(c.UserID), raw, s.ttl).Err(); err != nil {
		return shared.ErrPersistence.Wrap(fmt.Errorf("redis set cart: %w", err))
	}
	return nil
}

// Update runs fn inside a WATCH on the cart key and retries when another
// client wrote the cart before EXEC
func (s *RedisCartStore) Update(ctx context.Context, userID uuid.UUID, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	key := cartKey(userID)
	var updated *cart.Cart

	txf := func(tx *redis.Tx) error {
		c, err := decodeCart(userID, tx.Get(ctx, key))
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		raw, err := encodeCart(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if err == nil {
			updated = c
		}
		return err
	}

	for attempt := 0; attempt < maxCartUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var de *shared.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, shared.ErrPersistence.Wrap(fmt.Errorf("redis update cart: %w", err))
	}
	return nil, shared.ErrConcurrencyConflict.WithMessage("Cart was modified concurrently, please retry")
}

// Clear removes the stored cart
func (s *RedisCartStore) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return shared.ErrPersistence.Wrap(fmt.Errorf("redis del cart: %w", err))
	}
	return nil
}

var _ cart.Store = (*RedisCartStore)(nil)
