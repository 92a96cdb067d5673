package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// TrackingService drives the shipment tracking state machine
type TrackingService struct {
	orders         order.OrderRepository
	scope          order.TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewTrackingService creates a new TrackingService
func NewTrackingService(orders order.OrderRepository, scope order.TransactionScope, l *zap.Logger) *TrackingService {
	return &TrackingService{
		orders: orders,
		scope:  scope,
		logger: l.Named("tracking_service"),
		now:    time.Now,
	}
}

// SetEventPublisher sets the publisher used after each committed change
func (s *TrackingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// UpdateLocation appends one location fix and optionally advances the
// tracking status. The point, the current location and the status are
// written in one transaction; subscribers are notified after commit.
func (s *TrackingService) UpdateLocation(ctx context.Context, actor *shared.Actor, orderID uuid.UUID, req UpdateLocationRequest) (*TrackingResponse, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Lat == nil || req.Lng == nil {
		return nil, shared.ErrInvalidInput.WithMessage("lat and lng are required")
	}
	point, err := order.NewGeoPoint(*req.Lat, *req.Lng)
	if err != nil {
		return nil, err
	}
	var status *order.TrackingStatus
	if req.Status != "" {
		parsed, err := order.ParseTrackingStatus(req.Status)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}

	var updated *order.Order
	err = s.scope.Execute(ctx, func(repos order.Repositories) error {
		o, err := repos.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		tp, err := o.RecordLocation(point, status, s.now(), actor)
		if err != nil {
			return err
		}
		saved, err := repos.Orders().AppendTrackingPoint(ctx, o.ID, tp)
		if err != nil {
			return err
		}
		o.Tracking.History[len(o.Tracking.History)-1] = saved
		if err := repos.Orders().SaveWithLock(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, asDomainError(err)
	}

	logger.Enrich(ctx, s.logger).Info("Order location updated",
		zap.String("order_id", orderID.String()),
		zap.Float64("lat", point.Lat),
		zap.Float64("lng", point.Lng),
		zap.String("status", string(updated.Tracking.Status)))
	publishEvents(ctx, s.eventPublisher, s.logger, updated.PullDomainEvents()...)

	resp := ToTrackingResponse(updated.ID, updated.Tracking)
	return &resp, nil
}

// GetTracking returns the tracking state of an order visible to actor
func (s *TrackingService) GetTracking(ctx context.Context, actor *shared.Actor, orderID uuid.UUID) (*TrackingResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, asDomainError(err)
	}
	if !canView(actor, o.UserID) {
		return nil, shared.ErrNotFound.WithMessage("Order not found")
	}
	resp := ToTrackingResponse(o.ID, o.Tracking)
	return &resp, nil
}

// SetDestination sets the delivery target shown on the tracking map
func (s *TrackingService) SetDestination(ctx context.Context, actor *shared.Actor, orderID uuid.UUID, req SetDestinationRequest) (*TrackingResponse, error) {
	if err := shared.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Lat == nil || req.Lng == nil {
		return nil, shared.ErrInvalidInput.WithMessage("lat and lng are required")
	}
	point, err := order.NewGeoPoint(*req.Lat, *req.Lng)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, asDomainError(err)
	}
	if err := o.SetDestination(point, req.Address); err != nil {
		return nil, err
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return nil, asDomainError(err)
	}

	resp := ToTrackingResponse(o.ID, o.Tracking)
	return &resp, nil
}
