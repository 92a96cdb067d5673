package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisIdempotencyStore(client, "test:")
	ctx := context.Background()

	claimed, err := store.MarkProcessed(ctx, "checkout:cs_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.True(t, mr.Exists("test:checkout:cs_1"))

	claimed, err = store.MarkProcessed(ctx, "checkout:cs_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)

	held, err := store.IsProcessed(ctx, "checkout:cs_1")
	require.NoError(t, err)
	assert.True(t, held)

	mr.FastForward(2 * time.Minute)
	held, err = store.IsProcessed(ctx, "checkout:cs_1")
	require.NoError(t, err)
	assert.False(t, held, "claim expires with its TTL")

	_, err = store.MarkProcessed(ctx, "checkout:cs_2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "checkout:cs_2"))
	assert.False(t, mr.Exists("test:checkout:cs_2"))
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisIdempotencyStore(client, "")
	mr.Close()

	_, err = store.MarkProcessed(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestRedisCartStore(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := NewRedisCartStore(client, time.Hour)
	ctx := context.Background()
	userID := uuid.New()

	t.Run("missing cart is empty", func(t *testing.T) {
		c, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, c.UserID)
		assert.True(t, c.IsEmpty())
	})

	t.Run("save and reload", func(t *testing.T) {
		c := cart.New(userID)
		line := cart.Line{ProductID: uuid.New(), VariantID: uuid.New(), Quantity: 2}
		require.NoError(t, c.AddLine(line))
		require.NoError(t, store.Save(ctx, c))

		assert.Equal(t, time.Hour, mr.TTL("cart:"+userID.String()))

		loaded, err := store.Get(ctx, userID)
		require.NoError(t, err)
		require.Len(t, loaded.Lines, 1)
		assert.Equal(t, line, loaded.Lines[0])
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx, userID))
		c, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, c.IsEmpty())
	})

	t.Run("corrupt document is a persistence error", func(t *testing.T) {
		other := uuid.New()
		require.NoError(t, mr.Set("cart:"+other.String(), "{not json"))
		_, err := store.Get(ctx, other)
		assert.ErrorIs(t, err, shared.ErrPersistence)
	})
}

func TestRedisCartStore_Update(t *testing.T) {
	ctx := context.Background()
	productID, variantID := uuid.New(), uuid.New()
	addOne := func(c *cart.Cart) error {
		return c.AddLine(cart.Line{ProductID: productID, VariantID: variantID, Quantity: 1})
	}

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		mr, client := newMiniRedis(t)
		store := NewRedisCartStore(client, time.Hour)
		userID := uuid.New()

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, userID, addOne)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		c, err := store.Get(ctx, userID)
		require.NoError(t, err)
		require.Len(t, c.Lines, 1)
		assert.Equal(t, writers, c.Lines[0].Quantity)
		assert.Equal(t, time.Hour, mr.TTL("cart:"+userID.String()))
	})

	t.Run("write between read and exec is retried", func(t *testing.T) {
		_, client := newMiniRedis(t)
		store := NewRedisCartStore(client, time.Hour)
		userID := uuid.New()

		calls := 0
		updated, err := store.Update(ctx, userID, func(c *cart.Cart) error {
			calls++
			if calls == 1 {
				other := cart.New(userID)
				require.NoError(t, other.AddLine(cart.Line{ProductID: productID, VariantID: variantID, Quantity: 5}))
				require.NoError(t, store.Save(ctx, other))
			}
			return addOne(c)
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		require.Len(t, updated.Lines, 1)
		assert.Equal(t, 6, updated.Lines[0].Quantity)
	})

	t.Run("error from fn leaves the cart untouched", func(t *testing.T) {
		_, client := newMiniRedis(t)
		store := NewRedisCartStore(client, time.Hour)
		userID := uuid.New()
		_, err := store.Update(ctx, userID, addOne)
		require.NoError(t, err)

		_, err = store.Update(ctx, userID, func(c *cart.Cart) error {
			c.Lines = nil
			return shared.ErrNotFound.WithMessage("Item not found in cart")
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)

		c, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, c.Lines, 1)
	})
}

func TestRedisTrackingChannel_PublishSubscribe(t *testing.T) {
	mr, client := newMiniRedis(t)
	ch := NewRedisTrackingChannel(client,
		WithChannelName("test:tracking"),
		WithChannelLogger(zaptest.NewLogger(t)))

	received := make(chan order.TrackingUpdate, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subErr := make(chan error, 1)
	go func() {
		subErr <- ch.Subscribe(ctx, func(u order.TrackingUpdate) { received <- u })
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("test:tracking")["test:tracking"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	update := order.TrackingUpdate{
		OrderID: uuid.New(),
		UserID:  uuid.New(),
		Lat:     40.4168,
		Lng:     -3.7038,
		Status:  order.TrackingStatusInTransit,
	}
	require.NoError(t, ch.Publish(context.Background(), update))

	select {
	case got := <-received:
		assert.Equal(t, update.OrderID, got.OrderID)
		assert.Equal(t, update.Status, got.Status)
		assert.InDelta(t, update.Lat, got.Lat, 1e-9)
		assert.False(t, got.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("tracking update not delivered")
	}

	require.NoError(t, ch.Close())
	select {
	case <-subErr:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after Close")
	}

	assert.ErrorIs(t, ch.Subscribe(context.Background(), func(order.TrackingUpdate) {}), ErrChannelClosed)
}

func TestStoreFactory(t *testing.T) {
	t.Run("redis disabled uses memory", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Tracking.Backend = "memory"

		stores, err := NewStoreFactory(cfg).Build()
		require.NoError(t, err)
		defer stores.Close()

		assert.Nil(t, stores.Client())
		assert.IsType(t, &InMemoryCartStore{}, stores.Carts)
		assert.IsType(t, &InMemoryTrackingChannel{}, stores.Tracking)
	})

	t.Run("redis backend on shared client", func(t *testing.T) {
		_, client := newMiniRedis(t)
		cfg := &config.Config{}
		cfg.Cart.TTL = time.Hour
		cfg.Tracking.Backend = "redis"
		cfg.Tracking.Channel = "test:tracking"

		stores := NewStoreFactory(cfg).WithClient(client)
		assert.IsType(t, &RedisIdempotencyStore{}, stores.Idempotency)
		assert.IsType(t, &RedisCartStore{}, stores.Carts)
		assert.IsType(t, &RedisTrackingChannel{}, stores.Tracking)
	})

	t.Run("unreachable redis falls back outside production", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)
		host := mr.Host()
		mr.Close()

		cfg := &config.Config{}
		cfg.Redis.Enabled = true
		cfg.Redis.Host = host
		cfg.Redis.Port = port
		cfg.Tracking.Backend = "memory"

		stores, err := NewStoreFactory(cfg, WithLogger(zaptest.NewLogger(t))).Build()
		require.NoError(t, err)
		defer stores.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)

		_, err = NewStoreFactory(cfg, WithInMemoryFallback(false)).Build()
		assert.Error(t, err)
	})
}
