// Package audit turns domain events into audit trail entries.
package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/audit"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Entity types recorded for order lifecycle events
const (
	EntityOrder  = "order"
	EntityReturn = "return"
)

// AuditEventHandler records one audit entry per order or return event.
// It always returns nil so audit problems never reach the publisher.
type AuditEventHandler struct {
	sink   audit.Sink
	logger *zap.Logger
}

// NewAuditEventHandler creates a handler writing to sink
func NewAuditEventHandler(sink audit.Sink, l *zap.Logger) *AuditEventHandler {
	return &AuditEventHandler{sink: sink, logger: l.Named("audit_handler")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditEventHandler) EventTypes() []string {
	return []string{
		order.EventTypeOrderCreated,
		order.EventTypeOrderCancelled,
		order.EventTypeOrderStatusChanged,
		order.EventTypeOrderDeleted,
		order.EventTypeTrackingUpdated,
		order.EventTypeReturnRequested,
		order.EventTypeReturnStatusChanged,
		order.EventTypeReturnRemoved,
	}
}

// Handle maps event to an audit entry and hands it to the sink
func (h *AuditEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	entry, ok := h.toEntry(event)
	if !ok {
		h.logger.Warn("No audit mapping for event", zap.String("event_type", event.EventType()))
		return nil
	}
	withActor(&entry, event.Actor())
	h.sink.Record(ctx, entry)
	return nil
}

func (h *AuditEventHandler) toEntry(event shared.DomainEvent) (audit.Entry, bool) {
	switch e := event.(type) {
	case *order.OrderCreatedEvent:
		return audit.Entry{
			Action:     audit.ActionOrderCreated,
			EntityType: EntityOrder,
			EntityID:   e.OrderID.String(),
			Meta: map[string]any{
				"amount_total": amount(e.AmountTotal),
				"session_ref":  e.SessionRef,
				"item_count":   e.ItemCount,
			},
		}, true
	case *order.OrderCancelledEvent:
		return audit.Entry{
			Action:     audit.ActionOrderCancelled,
			EntityType: EntityOrder,
			EntityID:   e.OrderID.String(),
			Meta: map[string]any{
				"amount_total": amount(e.AmountTotal),
				"session_ref":  e.SessionRef,
			},
		}, true
	case *order.OrderStatusChangedEvent:
		return audit.Entry{
			Action:     audit.ActionOrderStatusUpdated,
			EntityType: EntityOrder,
			EntityID:   e.OrderID.String(),
			Before:     map[string]any{"status": string(e.FromStatus)},
			After:      map[string]any{"status": string(e.ToStatus)},
		}, true
	case *order.OrderDeletedEvent:
		return audit.Entry{
			Action:     audit.ActionOrderDeleted,
			EntityType: EntityOrder,
			EntityID:   e.OrderID.String(),
			Before: map[string]any{
				"user_id":      e.UserID.String(),
				"status":       string(e.Status),
				"amount_total": amount(e.AmountTotal),
			},
		}, true
	case *order.TrackingUpdatedEvent:
		return audit.Entry{
			Action:     audit.ActionOrderLocationUpdated,
			EntityType: EntityOrder,
			EntityID:   e.OrderID.String(),
			After: map[string]any{
				"lat":    e.Lat,
				"lng":    e.Lng,
				"status": string(e.Status),
			},
		}, true
	case *order.ReturnRequestedEvent:
		return audit.Entry{
			Action:     audit.ActionReturnRequested,
			EntityType: EntityReturn,
			EntityID:   e.ReturnID.String(),
			Meta: map[string]any{
				"order_id":      e.OrderID.String(),
				"reason":        e.Reason,
				"method":        string(e.Method),
				"refund_amount": amount(e.RefundAmount),
			},
		}, true
	case *order.ReturnStatusChangedEvent:
		return audit.Entry{
			Action:     audit.ActionReturnStatusUpdated,
			EntityType: EntityReturn,
			EntityID:   e.ReturnID.String(),
			Meta:       map[string]any{"order_id": e.OrderID.String()},
			Before:     map[string]any{"status": string(e.FromStatus)},
			After: map[string]any{
				"status":        string(e.ToStatus),
				"notes":         e.Notes,
				"refund_amount": amount(e.RefundAmount),
			},
		}, true
	case *order.ReturnRemovedEvent:
		return audit.Entry{
			Action:     audit.ActionReturnDeleted,
			EntityType: EntityReturn,
			EntityID:   e.ReturnID.String(),
			Meta:       map[string]any{"order_id": e.OrderID.String()},
			Before:     map[string]any{"status": string(e.Status)},
		}, true
	}
	return audit.Entry{}, false
}

func withActor(entry *audit.Entry, actor *shared.Actor) {
	if actor == nil {
		entry.ActorType = string(shared.RoleSystem)
		return
	}
	entry.ActorType = string(actor.Role)
	entry.ActorName = actor.Name
	entry.ActorEmail = actor.Email
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		entry.ActorID = &id
	}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
