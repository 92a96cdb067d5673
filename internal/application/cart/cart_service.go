// Package cart serves the shopper's cart.
package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/audit"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CartService handles cart operations
type CartService struct {
	store   cart.Store
	catalog checkout.Catalog
	audit   audit.Sink
	logger  *zap.Logger
}

// NewCartService creates a new CartService
func NewCartService(store cart.Store, catalog checkout.Catalog, sink audit.Sink, l *zap.Logger) *CartService {
	return &CartService{
		store:   store,
		catalog: catalog,
		audit:   sink,
		logger:  l.Named("cart_service"),
	}
}

// Get returns the actor's cart with current names and prices. Lines whose
// variant is gone are kept and marked unavailable.
func (s *CartService) Get(ctx context.Context, actor *shared.Actor) (*CartResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	c, err := s.store.Get(ctx, actor.UserID)
	if err != nil {
		return nil, asPersistenceError(err)
	}
	return s.toResponse(ctx, c)
}

// UpsertItem adds a line, incrementing an existing one, or replaces its
// quantity when req.Replace is set
func (s *CartService) UpsertItem(ctx context.Context, actor *shared.Actor, req UpsertItemRequest) (*CartResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	if _, err := s.catalog.FindVariant(ctx, req.ProductID, req.VariantID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCart.WithMessage("Product variant is not available")
		}
		return nil, asPersistenceError(err)
	}

	line := cart.Line{ProductID: req.ProductID, VariantID: req.VariantID, Quantity: req.Quantity}
	c, err := s.store.Update(ctx, actor.UserID, func(c *cart.Cart) error {
		if req.Replace {
			return c.SetLine(line)
		}
		return c.AddLine(line)
	})
	if err != nil {
		return nil, asPersistenceError(err)
	}

	s.record(ctx, actor, audit.ActionCartUpdated, map[string]any{
		"product_id": req.ProductID.String(),
		"variant_id": req.VariantID.String(),
		"quantity":   req.Quantity,
		"replace":    req.Replace,
	})
	return s.toResponse(ctx, c)
}

// RemoveItem drops the line for variantID
func (s *CartService) RemoveItem(ctx context.Context, actor *shared.Actor, variantID uuid.UUID) (*CartResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	c, err := s.store.Update(ctx, actor.UserID, func(c *cart.Cart) error {
		if !c.RemoveVariant(variantID) {
			return shared.ErrNotFound.WithMessage("Item not found in cart")
		}
		return nil
	})
	if err != nil {
		return nil, asPersistenceError(err)
	}

	s.record(ctx, actor, audit.ActionCartItemDeleted, map[string]any{"variant_id": variantID.String()})
	return s.toResponse(ctx, c)
}

func (s *CartService) toResponse(ctx context.Context, c *cart.Cart) (*CartResponse, error) {
	resp := &CartResponse{
		UserID:        c.UserID,
		Lines:         make([]CartLineResponse, 0, len(c.Lines)),
		TotalQuantity: c.TotalQuantity(),
		Subtotal:      decimal.Zero,
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		resp.UpdatedAt = &updated
	}

	for _, line := range c.Lines {
		lr := CartLineResponse{ProductID: line.ProductID, VariantID: line.VariantID, Quantity: line.Quantity}
		v, err := s.catalog.FindVariant(ctx, line.ProductID, line.VariantID)
		switch {
		case err == nil:
			price := v.Price
			lr.Name = v.DisplayName()
			lr.UnitPrice = &price
			lr.Available = true
			resp.Subtotal = resp.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		case errors.Is(err, shared.ErrNotFound):
		default:
			return nil, asPersistenceError(err)
		}
		resp.Lines = append(resp.Lines, lr)
	}
	return resp, nil
}

func (s *CartService) record(ctx context.Context, actor *shared.Actor, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	s.audit.Record(ctx, audit.Entry{
		Action:     action,
		ActorID:    &userID,
		ActorType:  string(actor.Role),
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
		EntityType: "cart",
		EntityID:   actor.UserID.String(),
		Meta:       meta,
	})
	logger.Enrich(ctx, s.logger).Debug("Cart changed", zap.String("action", action))
}

func asPersistenceError(err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.ErrPersistence.Wrap(err)
}
