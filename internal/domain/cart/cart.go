// Package cart models a shopper's pending selection of product variants.
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// Line is one (product, variant, quantity) selection
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

// Validate checks identifiers and quantity
func (l Line) Validate() error {
	if l.ProductID == uuid.Nil || l.VariantID == uuid.Nil {
		return shared.ErrInvalidCart.WithMessage("product_id and variant_id are required")
	}
	if l.Quantity < 1 {
		return shared.ErrInvalidCart.WithMessage("quantity must be at least 1")
	}
	return nil
}

func (l Line) sameItem(other Line) bool {
	return l.ProductID == other.ProductID && l.VariantID == other.VariantID
}

// Cart is the per-user collection of lines.
// At most one line exists per (product, variant) pair.
type Cart struct {
	UserID    uuid.UUID `json:"user_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty cart for userID
func New(userID uuid.UUID) *Cart {
	return &Cart{UserID: userID, Lines: make([]Line, 0)}
}

// AddLine merges line into the cart, incrementing the quantity of an
// existing line for the same item
func (c *Cart) AddLine(line Line) error {
	if err := line.Validate(); err != nil {
		return err
	}
	for i := range c.Lines {
		if c.Lines[i].sameItem(line) {
			c.Lines[i].Quantity += line.Quantity
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	c.Lines = append([]Line{line}, c.Lines...)
	c.UpdatedAt = time.Now()
	return nil
}

// SetLine replaces the quantity of an existing line or inserts it
func (c *Cart) SetLine(line Line) error {
	if err := line.Validate(); err != nil {
		return err
	}
	for i := range c.Lines {
		if c.Lines[i].sameItem(line) {
			c.Lines[i].Quantity = line.Quantity
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	c.Lines = append([]Line{line}, c.Lines...)
	c.UpdatedAt = time.Now()
	return nil
}

// RemoveVariant drops every line for variantID and reports whether any existed
func (c *Cart) RemoveVariant(variantID uuid.UUID) bool {
	kept := c.Lines[:0]
	removed := false
	for _, l := range c.Lines {
		if l.VariantID == variantID {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	c.Lines = kept
	if removed {
		c.UpdatedAt = time.Now()
	}
	return removed
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// TotalQuantity sums all line quantities
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Store persists carts. Get on a user without a cart returns an empty cart.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	// Update applies fn to the current cart and stores the result only if
	// no other write landed in between. An error from fn discards the change.
	Update(ctx context.Context, userID uuid.UUID, fn func(c *Cart) error) (*Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}
