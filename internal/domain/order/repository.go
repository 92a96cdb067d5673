package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// OrderRepository defines persistence for the Order aggregate.
// Lookups return shared.ErrNotFound when nothing matches.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUpdate loads the order and locks its row for the rest of
	// the surrounding transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindBySessionRef finds the order materialized from a payment session
	FindBySessionRef(ctx context.Context, sessionRef string) (*Order, error)

	// FindAll lists orders newest first
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, int64, error)

	// FindByUser lists a user's orders newest first
	FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Order, int64, error)

	// Create inserts a new order with its line items. A second order for the
	// same session reference fails with shared.ErrAlreadyExists.
	Create(ctx context.Context, o *Order) error

	// SaveWithLock persists mutable order state (status, tracking scalars,
	// return summary) guarded by the aggregate version
	SaveWithLock(ctx context.Context, o *Order) error

	// AppendTrackingPoint inserts a history entry and returns it with its
	// storage-assigned sequence
	AppendTrackingPoint(ctx context.Context, orderID uuid.UUID, point TrackingPoint) (TrackingPoint, error)

	// Delete removes the order together with its line items and history
	Delete(ctx context.Context, id uuid.UUID) error
}

// ReturnRepository defines persistence for the Return aggregate
type ReturnRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Return, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Return, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Return, int64, error)
	FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Return, int64, error)

	// Create inserts a return. A second return for the same order fails
	// with shared.ErrAlreadyExists.
	Create(ctx context.Context, r *Return) error

	// SaveWithLock persists status, notes and refund amount guarded by version
	SaveWithLock(ctx context.Context, r *Return) error

	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error
}

// TransactionScope runs a unit of work over order and return storage.
// Either every write inside fn commits or none does.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories gives access to repositories bound to one transaction
type Repositories interface {
	Orders() OrderRepository
	Returns() ReturnRepository
}
