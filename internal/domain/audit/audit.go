// Package audit describes the append-only trail of state transitions.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names recorded in the trail
const (
	ActionCartUpdated          = "cart_updated"
	ActionCartItemDeleted      = "cart_item_deleted"
	ActionOrderCreated         = "order_created"
	ActionOrderCancelled       = "order_cancelled"
	ActionOrderStatusUpdated   = "order_status_updated"
	ActionOrderDeleted         = "order_deleted"
	ActionOrderLocationUpdated = "order_location_updated"
	ActionReturnRequested      = "return_requested"
	ActionReturnStatusUpdated  = "return_status_updated"
	ActionReturnDeleted        = "return_deleted"
)

// Entry is one audit record
type Entry struct {
	ID         uuid.UUID
	OccurredAt time.Time
	Action     string
	ActorID    *uuid.UUID
	ActorType  string
	ActorName  string
	ActorEmail string
	EntityType string
	EntityID   string
	IP         string
	UserAgent  string
	Route      string
	Method     string
	RequestID  string
	Meta       map[string]any
	Before     map[string]any
	After      map[string]any
}

// Sink records audit entries. Record never fails the caller; delivery
// problems are handled inside the sink.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// Repository stores audit entries
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	FindByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
}
