package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeOrder  = "Order"
	AggregateTypeReturn = "Return"
)

// Event type constants
const (
	EventTypeOrderCreated        = "OrderCreated"
	EventTypeOrderCancelled      = "OrderCancelled"
	EventTypeOrderStatusChanged  = "OrderStatusChanged"
	EventTypeOrderDeleted        = "OrderDeleted"
	EventTypeTrackingUpdated     = "TrackingUpdated"
	EventTypeReturnRequested     = "ReturnRequested"
	EventTypeReturnStatusChanged = "ReturnStatusChanged"
	EventTypeReturnRemoved       = "ReturnRemoved"
)

// OrderCreatedEvent is raised when a completed checkout materializes an order
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	SessionRef  string          `json:"session_ref"`
	AmountTotal decimal.Decimal `json:"amount_total"`
	ItemCount   int             `json:"item_count"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order, actor *shared.Actor) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID, actor),
		OrderID:         o.ID,
		UserID:          o.UserID,
		SessionRef:      o.SessionRef,
		AmountTotal:     o.Amount,
		ItemCount:       len(o.LineItems),
	}
}

// OrderCancelledEvent is raised when a cancelled checkout is recorded
type OrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	SessionRef  string          `json:"session_ref"`
	AmountTotal decimal.Decimal `json:"amount_total"`
}

// NewOrderCancelledEvent creates a new OrderCancelledEvent
func NewOrderCancelledEvent(o *Order, actor *shared.Actor) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCancelled, AggregateTypeOrder, o.ID, actor),
		OrderID:         o.ID,
		UserID:          o.UserID,
		SessionRef:      o.SessionRef,
		AmountTotal:     o.Amount,
	}
}

// OrderStatusChangedEvent is raised on an administrative status change
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID    uuid.UUID   `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
}

// NewOrderStatusChangedEvent creates a new OrderStatusChangedEvent
func NewOrderStatusChangedEvent(o *Order, from OrderStatus, actor *shared.Actor) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, o.ID, actor),
		OrderID:         o.ID,
		FromStatus:      from,
		ToStatus:        o.Status,
	}
}

// OrderDeletedEvent is raised when an order and its return are removed
type OrderDeletedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	AmountTotal decimal.Decimal `json:"amount_total"`
}

// NewOrderDeletedEvent creates a new OrderDeletedEvent
func NewOrderDeletedEvent(o *Order, actor *shared.Actor) *OrderDeletedEvent {
	return &OrderDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDeleted, AggregateTypeOrder, o.ID, actor),
		OrderID:         o.ID,
		UserID:          o.UserID,
		Status:          o.Status,
		AmountTotal:     o.Amount,
	}
}

// TrackingUpdatedEvent is raised for every recorded location fix
type TrackingUpdatedEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID      `json:"order_id"`
	UserID  uuid.UUID      `json:"user_id"`
	Lat     float64        `json:"lat"`
	Lng     float64        `json:"lng"`
	Status  TrackingStatus `json:"status"`
}

// NewTrackingUpdatedEvent creates a new TrackingUpdatedEvent
func NewTrackingUpdatedEvent(o *Order, point GeoPoint, actor *shared.Actor) *TrackingUpdatedEvent {
	return &TrackingUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTrackingUpdated, AggregateTypeOrder, o.ID, actor),
		OrderID:         o.ID,
		UserID:          o.UserID,
		Lat:             point.Lat,
		Lng:             point.Lng,
		Status:          o.Tracking.Status,
	}
}

// ReturnRequestedEvent is raised when a customer opens a return
type ReturnRequestedEvent struct {
	shared.BaseDomainEvent
	ReturnID     uuid.UUID       `json:"return_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Reason       string          `json:"reason"`
	Method       ReturnMethod    `json:"method"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// NewReturnRequestedEvent creates a new ReturnRequestedEvent
func NewReturnRequestedEvent(r *Return, actor *shared.Actor) *ReturnRequestedEvent {
	return &ReturnRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnRequested, AggregateTypeReturn, r.ID, actor),
		ReturnID:        r.ID,
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		Reason:          r.Reason,
		Method:          r.Method,
		RefundAmount:    r.RefundAmount,
	}
}

// ReturnStatusChangedEvent is raised when staff move a return forward
type ReturnStatusChangedEvent struct {
	shared.BaseDomainEvent
	ReturnID     uuid.UUID       `json:"return_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	FromStatus   ReturnStatus    `json:"from_status"`
	ToStatus     ReturnStatus    `json:"to_status"`
	Notes        string          `json:"notes,omitempty"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// NewReturnStatusChangedEvent creates a new ReturnStatusChangedEvent
func NewReturnStatusChangedEvent(r *Return, from ReturnStatus, actor *shared.Actor) *ReturnStatusChangedEvent {
	return &ReturnStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnStatusChanged, AggregateTypeReturn, r.ID, actor),
		ReturnID:        r.ID,
		OrderID:         r.OrderID,
		FromStatus:      from,
		ToStatus:        r.Status,
		Notes:           r.Notes,
		RefundAmount:    r.RefundAmount,
	}
}

// ReturnRemovedEvent is raised when a return is deleted
type ReturnRemovedEvent struct {
	shared.BaseDomainEvent
	ReturnID uuid.UUID    `json:"return_id"`
	OrderID  uuid.UUID    `json:"order_id"`
	Status   ReturnStatus `json:"status"`
}

// NewReturnRemovedEvent creates a new ReturnRemovedEvent
func NewReturnRemovedEvent(r *Return, actor *shared.Actor) *ReturnRemovedEvent {
	return &ReturnRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnRemoved, AggregateTypeReturn, r.ID, actor),
		ReturnID:        r.ID,
		OrderID:         r.OrderID,
		Status:          r.Status,
	}
}
