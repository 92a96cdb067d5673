package cache

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Stores bundles the Redis-or-memory backed components
type Stores struct {
	Idempotency shared.IdempotencyStore
	Carts       cart.Store
	Tracking    order.TrackingChannel

	client *redis.Client
}

// Client returns the shared Redis client, or nil when running in memory
func (s *Stores) Client() *redis.Client {
	return s.client
}

// Close releases every store and the shared client
func (s *Stores) Close() error {
	var errs []error
	if s.Tracking != nil {
		errs = append(errs, s.Tracking.Close())
	}
	if s.Idempotency != nil {
		errs = append(errs, s.Idempotency.Close())
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}

// StoreFactory builds Stores from configuration
type StoreFactory struct {
	cfg                   *config.Config
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory and the stores it builds
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// in-memory stores. Default is true outside production.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a factory for cfg
func NewStoreFactory(cfg *config.Config, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		cfg:                   cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: !cfg.IsProduction(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build connects to Redis when enabled and assembles the stores
func (f *StoreFactory) Build() (*Stores, error) {
	if !f.cfg.Redis.Enabled {
		f.logger.Info("Redis disabled, using in-memory stores")
		return f.inMemory(), nil
	}

	client, err := NewRedisClient(f.cfg.Redis)
	if err != nil {
		if !f.allowInMemoryFallback || f.cfg.Tracking.Backend == "redis" {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Carts and checkout claims will not be shared between instances.",
			zap.Error(err))
		return f.inMemory(), nil
	}

	f.logger.Info("Using Redis stores", zap.String("addr", f.cfg.Redis.Addr()))
	return f.WithClient(client), nil
}

// WithClient assembles Redis-backed stores on an existing client
func (f *StoreFactory) WithClient(client *redis.Client) *Stores {
	s := &Stores{
		Idempotency: NewRedisIdempotencyStore(client, ""),
		Carts:       NewRedisCartStore(client, f.cfg.Cart.TTL),
		client:      client,
	}
	if f.cfg.Tracking.Backend == "redis" {
		s.Tracking = NewRedisTrackingChannel(client,
			WithChannelName(f.cfg.Tracking.Channel),
			WithChannelLogger(f.logger.Named("tracking_channel")))
	} else {
		s.Tracking = NewInMemoryTrackingChannel(f.logger.Named("tracking_channel"))
	}
	return s
}

func (f *StoreFactory) inMemory() *Stores {
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(),
		Carts:       NewInMemoryCartStore(),
		Tracking:    NewInMemoryTrackingChannel(f.logger.Named("tracking_channel")),
	}
}
