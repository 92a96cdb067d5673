package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/cart"
)

// InMemoryCartStore is a process-local cart store used when Redis is
// disabled and in tests
type InMemoryCartStore struct {
	mu    sync.RWMutex
	carts map[uuid.UUID]cart.Cart
}

// NewInMemoryCartStore creates an empty store
func NewInMemoryCartStore() *InMemoryCartStore {
	return &InMemoryCartStore{carts: make(map[uuid.UUID]cart.Cart)}
}

// Get returns a copy of the stored cart or an empty cart
func (s *InMemoryCartStore) Get(_ context.Context, userID uuid.UUID) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.carts[userID]
	if !ok {
		return cart.New(userID), nil
	}
	c := stored
	c.Lines = append(make([]cart.Line, 0, len(stored.Lines)), stored.Lines...)
	return &c, nil
}

// Save stores a copy of c
func (s *InMemoryCartStore) Save(_ context.Context, c *cart.Cart) error {
	stored := *c
	stored.Lines = append(make([]cart.Line, 0, len(c.Lines)), c.Lines...)

	s.mu.Lock()
	s.carts[c.UserID] = stored
	s.mu.Unlock()
	return nil
}

// Update applies fn to a copy of the cart under the store lock
func (s *InMemoryCartStore) Update(_ context.Context, userID uuid.UUID, fn func(c *cart.Cart) error) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cart.New(userID)
	if stored, ok := s.carts[userID]; ok {
		copied := stored
		copied.Lines = append(make([]cart.Line, 0, len(stored.Lines)), stored.Lines...)
		c = &copied
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}

	stored := *c
	stored.Lines = append(make([]cart.Line, 0, len(c.Lines)), c.Lines...)
	s.carts[userID] = stored
	return c, nil
}

// Clear drops the cart for userID
func (s *InMemoryCartStore) Clear(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	return nil
}

var _ cart.Store = (*InMemoryCartStore)(nil)
