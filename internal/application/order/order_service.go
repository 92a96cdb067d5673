package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// OrderService handles order ledger operations
type OrderService struct {
	orders         order.OrderRepository
	scope          order.TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(orders order.OrderRepository, scope order.TransactionScope, l *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		scope:  scope,
		logger: l.Named("order_service"),
	}
}

// SetEventPublisher sets the publisher used after each committed change
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Get returns an order visible to actor. Orders of other users are
// reported as not found.
func (s *OrderService) Get(ctx context.Context, actor *shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, asDomainError(err)
	}
	if !canView(actor, o.UserID) {
		return nil, shared.ErrNotFound.WithMessage("Order not found")
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// ListAll returns every order, newest first. Admin only.
func (s *OrderService) ListAll(ctx context.Context, actor *shared.Actor, filter shared.Filter) (*shared.Paginated[OrderResponse], error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	orders, total, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return nil, asDomainError(err)
	}
	page := shared.NewPaginated(ToOrderResponses(orders), total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListForUser returns the actor's own orders, newest first
func (s *OrderService) ListForUser(ctx context.Context, actor *shared.Actor, filter shared.Filter) (*shared.Paginated[OrderResponse], error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	orders, total, err := s.orders.FindByUser(ctx, actor.UserID, filter)
	if err != nil {
		return nil, asDomainError(err)
	}
	page := shared.NewPaginated(ToOrderResponses(orders), total, filter.Page, filter.PageSize)
	return &page, nil
}

// UpdateStatus applies an administrative status change with an optimistic
// version check. Re-applying the current status changes nothing.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *shared.Actor, id uuid.UUID, req UpdateOrderStatusRequest) (*OrderResponse, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	target, err := order.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, asDomainError(err)
	}

	changed, err := o.UpdateStatus(target, actor)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.orders.SaveWithLock(ctx, o); err != nil {
			return nil, asDomainError(err)
		}
		logger.Enrich(ctx, s.logger).Info("Order status updated",
			zap.String("order_id", o.ID.String()),
			zap.String("status", string(o.Status)))
		publishEvents(ctx, s.eventPublisher, s.logger, o.PullDomainEvents()...)
	}

	resp := ToOrderResponse(o)
	return &resp, nil
}

// Delete removes an order together with its tracking history, line items
// and return. Admin only.
func (s *OrderService) Delete(ctx context.Context, actor *shared.Actor, id uuid.UUID) error {
	if err := shared.RequireAdmin(actor); err != nil {
		return err
	}

	var deleted *order.Order
	err := s.scope.Execute(ctx, func(repos order.Repositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := repos.Returns().DeleteByOrderID(ctx, id); err != nil {
			return err
		}
		if err := repos.Orders().Delete(ctx, id); err != nil {
			return err
		}
		o.MarkDeleted(actor)
		deleted = o
		return nil
	})
	if err != nil {
		return asDomainError(err)
	}

	logger.Enrich(ctx, s.logger).Info("Order deleted", zap.String("order_id", id.String()))
	publishEvents(ctx, s.eventPublisher, s.logger, deleted.PullDomainEvents()...)
	return nil
}
