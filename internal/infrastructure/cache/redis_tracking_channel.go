package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/order"
	"go.uber.org/zap"
)

const (
	defaultTrackingChannel = "storefront:tracking_update"
	defaultCloseTimeout    = 5 * time.Second
)

// ErrChannelClosed is returned by Subscribe after Close
var ErrChannelClosed = errors.New("tracking channel closed")

// RedisTrackingChannel fans tracking updates out across instances with
// Redis Pub/Sub. Delivery is at-most-once; updates published while no
// subscriber is connected are lost.
type RedisTrackingChannel struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	mu     sync.Mutex
	subs   map[int]context.CancelFunc
	nextID int
	closed bool
	wg     sync.WaitGroup
}

// RedisTrackingChannelOption configures a RedisTrackingChannel
type RedisTrackingChannelOption func(*RedisTrackingChannel)

// WithChannelName overrides the Pub/Sub channel name
func WithChannelName(name string) RedisTrackingChannelOption {
	return func(c *RedisTrackingChannel) {
		if name != "" {
			c.channel = name
		}
	}
}

// WithChannelLogger sets the logger
func WithChannelLogger(logger *zap.Logger) RedisTrackingChannelOption {
	return func(c *RedisTrackingChannel) {
		c.logger = logger
	}
}

// NewRedisTrackingChannel creates a channel on client. The caller keeps
// ownership of the client.
func NewRedisTrackingChannel(client *redis.Client, opts ...RedisTrackingChannelOption) *RedisTrackingChannel {
	c := &RedisTrackingChannel{
		client:  client,
		channel: defaultTrackingChannel,
		logger:  zap.NewNop(),
		subs:    make(map[int]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish sends update to every subscribed instance
func (c *RedisTrackingChannel) Publish(ctx context.Context, update order.TrackingUpdate) error {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal tracking update: %w", err)
	}

	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		c.logger.Error("Failed to publish tracking update",
			zap.String("channel", c.channel),
			zap.String("order_id", update.OrderID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to publish tracking update: %w", err)
	}

	c.logger.Debug("Published tracking update",
		zap.String("order_id", update.OrderID.String()),
		zap.String("status", string(update.Status)))
	return nil
}

// Subscribe blocks, invoking cb for each update in arrival order, until
// ctx is cancelled or Close is called
func (c *RedisTrackingChannel) Subscribe(ctx context.Context, cb func(order.TrackingUpdate)) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		c.wg.Done()
	}()

	pubsub := c.client.Subscribe(subCtx, c.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}

	c.logger.Info("Subscribed to tracking channel", zap.String("channel", c.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			c.logger.Info("Tracking subscription stopped", zap.String("channel", c.channel))
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				c.logger.Warn("Tracking channel closed by server", zap.String("channel", c.channel))
				return nil
			}

			var update order.TrackingUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				c.logger.Error("Failed to unmarshal tracking update",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			c.deliver(cb, update)
		}
	}
}

func (c *RedisTrackingChannel) deliver(cb func(order.TrackingUpdate), update order.TrackingUpdate) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in tracking subscriber", zap.Any("panic", r))
		}
	}()
	cb(update)
}

// Close stops every subscription and waits for them to return
func (c *RedisTrackingChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	for _, cancel := range c.subs {
		cancel()
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(defaultCloseTimeout):
		c.logger.Warn("Timeout waiting for tracking subscriptions to stop")
	}
	return nil
}

var _ order.TrackingChannel = (*RedisTrackingChannel)(nil)
