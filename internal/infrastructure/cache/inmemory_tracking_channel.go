package cache

import (
	"context"
	"sync"
	"time"

	"github.com/storefront/backend/internal/domain/order"
	"go.uber.org/zap"
)

// InMemoryTrackingChannel delivers updates to subscribers in the same
// process. Publish calls callbacks synchronously.
type InMemoryTrackingChannel struct {
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[int]func(order.TrackingUpdate)
	nextID int
	closed bool
	done   chan struct{}
}

// NewInMemoryTrackingChannel creates a channel with no subscribers
func NewInMemoryTrackingChannel(logger *zap.Logger) *InMemoryTrackingChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryTrackingChannel{
		logger: logger,
		subs:   make(map[int]func(order.TrackingUpdate)),
		done:   make(chan struct{}),
	}
}

// Publish hands update to every current subscriber
func (c *InMemoryTrackingChannel) Publish(_ context.Context, update order.TrackingUpdate) error {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrChannelClosed
	}
	callbacks := make([]func(order.TrackingUpdate), 0, len(c.subs))
	for _, cb := range c.subs {
		callbacks = append(callbacks, cb)
	}
	c.mu.RUnlock()

	for _, cb := range callbacks {
		c.deliver(cb, update)
	}
	return nil
}

func (c *InMemoryTrackingChannel) deliver(cb func(order.TrackingUpdate), update order.TrackingUpdate) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in tracking subscriber", zap.Any("panic", r))
		}
	}()
	cb(update)
}

// Subscribe registers cb and blocks until ctx is cancelled or Close is called
func (c *InMemoryTrackingChannel) Subscribe(ctx context.Context, cb func(order.TrackingUpdate)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = cb
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return nil
	}
}

// Subscribers returns the number of registered callbacks
func (c *InMemoryTrackingChannel) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Close releases every blocked Subscribe call
func (c *InMemoryTrackingChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

var _ order.TrackingChannel = (*InMemoryTrackingChannel)(nil)
