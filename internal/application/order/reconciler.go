package order

import (
	"context"
	"errors"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const reconcileBatchSize = 100

// ReturnReconciler repairs order return summaries that drifted from the
// standalone return records. The standalone record is authoritative.
type ReturnReconciler struct {
	orders  order.OrderRepository
	returns order.ReturnRepository
	scope   order.TransactionScope
	logger  *zap.Logger
}

// NewReturnReconciler creates a new ReturnReconciler
func NewReturnReconciler(
	orders order.OrderRepository,
	returns order.ReturnRepository,
	scope order.TransactionScope,
	l *zap.Logger,
) *ReturnReconciler {
	return &ReturnReconciler{
		orders:  orders,
		returns: returns,
		scope:   scope,
		logger:  l.Named("return_reconciler"),
	}
}

// Reconcile compares every return with its order and rewrites diverging
// summaries. It returns the number of repaired orders.
func (r *ReturnReconciler) Reconcile(ctx context.Context) (int, error) {
	repaired := 0
	filter := shared.Filter{Page: 1, PageSize: reconcileBatchSize}

	for {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		returns, total, err := r.returns.FindAll(ctx, filter)
		if err != nil {
			return repaired, asDomainError(err)
		}

		for i := range returns {
			fixed, err := r.reconcileOne(ctx, &returns[i])
			if err != nil {
				r.logger.Warn("Failed to reconcile return",
					zap.String("return_id", returns[i].ID.String()),
					zap.String("order_id", returns[i].OrderID.String()),
					zap.Error(err))
				continue
			}
			if fixed {
				repaired++
			}
		}

		if int64(filter.Page*filter.PageSize) >= total || len(returns) == 0 {
			break
		}
		filter.Page++
	}

	if repaired > 0 {
		r.logger.Info("Return summaries repaired", zap.Int("count", repaired))
	}
	return repaired, nil
}

func (r *ReturnReconciler) reconcileOne(ctx context.Context, ret *order.Return) (bool, error) {
	o, err := r.orders.FindByID(ctx, ret.OrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if o.Return.Matches(ret) {
		return false, nil
	}

	fixed := false
	err = r.scope.Execute(ctx, func(repos order.Repositories) error {
		current, err := repos.Returns().FindByID(ctx, ret.ID)
		if err != nil {
			return err
		}
		locked, err := repos.Orders().FindByIDForUpdate(ctx, current.OrderID)
		if err != nil {
			return err
		}
		if locked.Return.Matches(current) {
			return nil
		}
		locked.SyncReturn(current)
		if err := repos.Orders().SaveWithLock(ctx, locked); err != nil {
			return err
		}
		fixed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if fixed {
		r.logger.Info("Order return summary repaired",
			zap.String("order_id", ret.OrderID.String()),
			zap.String("return_status", string(ret.Status)))
	}
	return fixed, nil
}
