package order

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// BroadcastMetrics counts live-update delivery problems
type BroadcastMetrics interface {
	BroadcastFailed(ctx context.Context)
}

type noopBroadcastMetrics struct{}

func (noopBroadcastMetrics) BroadcastFailed(context.Context) {}

// TrackingBroadcastHandler forwards committed tracking updates to the
// live-update channel. Delivery is at-most-once: a failed publish is
// logged and counted, never retried.
type TrackingBroadcastHandler struct {
	channel order.TrackingChannel
	metrics BroadcastMetrics
	logger  *zap.Logger
}

// NewTrackingBroadcastHandler creates a handler publishing to channel
func NewTrackingBroadcastHandler(channel order.TrackingChannel, metrics BroadcastMetrics, l *zap.Logger) *TrackingBroadcastHandler {
	if metrics == nil {
		metrics = noopBroadcastMetrics{}
	}
	return &TrackingBroadcastHandler{
		channel: channel,
		metrics: metrics,
		logger:  l.Named("tracking_broadcast"),
	}
}

// EventTypes returns the event types this handler is interested in
func (h *TrackingBroadcastHandler) EventTypes() []string {
	return []string{order.EventTypeTrackingUpdated}
}

// Handle publishes the update carried by a TrackingUpdatedEvent
func (h *TrackingBroadcastHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	updated, ok := event.(*order.TrackingUpdatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			order.EventTypeTrackingUpdated, event.EventType())
	}

	update := order.TrackingUpdate{
		OrderID:   updated.OrderID,
		UserID:    updated.UserID,
		Lat:       updated.Lat,
		Lng:       updated.Lng,
		Status:    updated.Status,
		Timestamp: updated.OccurredAt(),
	}
	if err := h.channel.Publish(ctx, update); err != nil {
		h.metrics.BroadcastFailed(ctx)
		logger.Enrich(ctx, h.logger).Warn("Failed to broadcast tracking update",
			zap.String("order_id", updated.OrderID.String()),
			zap.Error(err))
	}
	return nil
}
