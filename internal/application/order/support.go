package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// publishEvents delivers events after the state change has been committed.
// Delivery problems are logged and never fail the operation.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, l *zap.Logger, events ...shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, l).Warn("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}

// asDomainError keeps domain errors and classifies everything else as a
// storage failure
func asDomainError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.ErrPersistence.Wrap(err)
}

// canView reports whether actor may read a resource owned by ownerID
func canView(actor *shared.Actor, ownerID uuid.UUID) bool {
	return actor.IsAdmin() || actor.Owns(ownerID)
}
