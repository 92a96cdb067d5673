package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TrackingUpdate is the payload pushed to live subscribers
type TrackingUpdate struct {
	OrderID   uuid.UUID      `json:"order_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Lat       float64        `json:"lat"`
	Lng       float64        `json:"lng"`
	Status    TrackingStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// TrackingChannel is the fan-out channel for live tracking updates.
// Delivery is at-most-once with no replay.
type TrackingChannel interface {
	// Publish sends an update to all current subscribers
	Publish(ctx context.Context, update TrackingUpdate) error

	// Subscribe registers cb for every update until ctx is cancelled
	// or Close is called
	Subscribe(ctx context.Context, cb func(TrackingUpdate)) error

	Close() error
}
