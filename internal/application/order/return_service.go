package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const returnSubmittedMessage = "Return request submitted"

// ReturnService runs the return workflow. Every change writes the
// standalone return and the order's embedded summary in one transaction.
type ReturnService struct {
	orders         order.OrderRepository
	returns        order.ReturnRepository
	scope          order.TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewReturnService creates a new ReturnService
func NewReturnService(
	orders order.OrderRepository,
	returns order.ReturnRepository,
	scope order.TransactionScope,
	l *zap.Logger,
) *ReturnService {
	return &ReturnService{
		orders:  orders,
		returns: returns,
		scope:   scope,
		logger:  l.Named("return_service"),
		now:     time.Now,
	}
}

// SetEventPublisher sets the publisher used after each committed change
func (s *ReturnService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RequestReturn opens a return for one of the actor's orders. An order
// that already has a return yields a soft failure result, not an error.
func (s *ReturnService) RequestReturn(ctx context.Context, actor *shared.Actor, req RequestReturnRequest) (*RequestReturnResult, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, shared.ErrInvalidInput.WithMessage("reason is required")
	}
	method, err := order.ParseReturnMethod(req.Method)
	if err != nil {
		return nil, err
	}

	var created *order.Return
	err = s.scope.Execute(ctx, func(repos order.Repositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !actor.Owns(o.UserID) {
			return shared.ErrNotFound.WithMessage("Order not found")
		}
		if err := o.RequestReturn(reason, s.now()); err != nil {
			return err
		}
		r, err := order.NewReturn(o, reason, method, actor)
		if err != nil {
			return err
		}
		if err := repos.Returns().Create(ctx, r); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return shared.ErrDuplicateReturn
			}
			return err
		}
		if err := repos.Orders().SaveWithLock(ctx, o); err != nil {
			return err
		}
		created = r
		return nil
	})
	if errors.Is(err, shared.ErrDuplicateReturn) {
		logger.Enrich(ctx, s.logger).Info("Duplicate return request ignored",
			zap.String("order_id", req.OrderID.String()))
		return &RequestReturnResult{Success: false, Message: shared.ErrDuplicateReturn.Message}, nil
	}
	if err != nil {
		return nil, asDomainError(err)
	}

	logger.Enrich(ctx, s.logger).Info("Return requested",
		zap.String("return_id", created.ID.String()),
		zap.String("order_id", created.OrderID.String()))
	publishEvents(ctx, s.eventPublisher, s.logger, created.PullDomainEvents()...)

	resp := ToReturnResponse(created)
	return &RequestReturnResult{Success: true, Message: returnSubmittedMessage, Return: &resp}, nil
}

// UpdateReturnStatus moves a return to a new status and mirrors it into
// the order. Admin only.
func (s *ReturnService) UpdateReturnStatus(ctx context.Context, actor *shared.Actor, returnID uuid.UUID, req UpdateReturnStatusRequest) (*ReturnResponse, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	target, err := order.ParseReturnStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if req.RefundAmount != nil && req.RefundAmount.IsNegative() {
		return nil, shared.ErrInvalidInput.WithMessage("refund_amount cannot be negative")
	}

	var updated *order.Return
	err = s.scope.Execute(ctx, func(repos order.Repositories) error {
		r, err := repos.Returns().FindByID(ctx, returnID)
		if err != nil {
			return err
		}
		if err := r.ChangeStatus(target, strings.TrimSpace(req.Notes), req.RefundAmount, actor); err != nil {
			return err
		}
		if err := repos.Returns().SaveWithLock(ctx, r); err != nil {
			return err
		}
		o, err := repos.Orders().FindByIDForUpdate(ctx, r.OrderID)
		if err != nil {
			return err
		}
		o.SyncReturn(r)
		if err := repos.Orders().SaveWithLock(ctx, o); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, asDomainError(err)
	}

	logger.Enrich(ctx, s.logger).Info("Return status updated",
		zap.String("return_id", updated.ID.String()),
		zap.String("status", string(updated.Status)))
	publishEvents(ctx, s.eventPublisher, s.logger, updated.PullDomainEvents()...)

	resp := ToReturnResponse(updated)
	return &resp, nil
}

// RemoveReturn deletes a return and resets the order's summary. Admin only.
func (s *ReturnService) RemoveReturn(ctx context.Context, actor *shared.Actor, returnID uuid.UUID) error {
	if err := shared.RequireAdmin(actor); err != nil {
		return err
	}

	var removed *order.Return
	err := s.scope.Execute(ctx, func(repos order.Repositories) error {
		r, err := repos.Returns().FindByID(ctx, returnID)
		if err != nil {
			return err
		}
		if err := repos.Returns().Delete(ctx, r.ID); err != nil {
			return err
		}
		o, err := repos.Orders().FindByIDForUpdate(ctx, r.OrderID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
		case err != nil:
			return err
		default:
			o.ClearReturn()
			if err := repos.Orders().SaveWithLock(ctx, o); err != nil {
				return err
			}
		}
		r.MarkRemoved(actor)
		removed = r
		return nil
	})
	if err != nil {
		return asDomainError(err)
	}

	logger.Enrich(ctx, s.logger).Info("Return removed",
		zap.String("return_id", removed.ID.String()),
		zap.String("order_id", removed.OrderID.String()))
	publishEvents(ctx, s.eventPublisher, s.logger, removed.PullDomainEvents()...)
	return nil
}

// GetReturn returns a return visible to actor
func (s *ReturnService) GetReturn(ctx context.Context, actor *shared.Actor, returnID uuid.UUID) (*ReturnResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	r, err := s.returns.FindByID(ctx, returnID)
	if err != nil {
		return nil, asDomainError(err)
	}
	if !canView(actor, r.UserID) {
		return nil, shared.ErrNotFound.WithMessage("Return not found")
	}
	resp := ToReturnResponse(r)
	return &resp, nil
}

// ListReturns returns every return, newest first. Admin only.
func (s *ReturnService) ListReturns(ctx context.Context, actor *shared.Actor, filter shared.Filter) (*shared.Paginated[ReturnResponse], error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	returns, total, err := s.returns.FindAll(ctx, filter)
	if err != nil {
		return nil, asDomainError(err)
	}
	page := shared.NewPaginated(ToReturnResponses(returns), total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListUserReturns returns the actor's own returns, newest first
func (s *ReturnService) ListUserReturns(ctx context.Context, actor *shared.Actor, filter shared.Filter) (*shared.Paginated[ReturnResponse], error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	returns, total, err := s.returns.FindByUser(ctx, actor.UserID, filter)
	if err != nil {
		return nil, asDomainError(err)
	}
	page := shared.NewPaginated(ToReturnResponses(returns), total, filter.Page, filter.PageSize)
	return &page, nil
}
