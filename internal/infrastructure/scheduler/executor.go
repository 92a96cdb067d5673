package scheduler

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// Reconciler is implemented by the order return reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// MaintenanceExecutor dispatches jobs to their task by type.
type MaintenanceExecutor struct {
	returns Reconciler
}

// NewMaintenanceExecutor creates a new MaintenanceExecutor
func NewMaintenanceExecutor(returns Reconciler) *MaintenanceExecutor {
	return &MaintenanceExecutor{returns: returns}
}

// Execute runs job with profiling labels naming the operation.
func (e *MaintenanceExecutor) Execute(ctx context.Context, job *Job) (int, error) {
	switch job.Type {
	case JobTypeReconcileReturns:
		var (
			affected int
			err      error
		)
		telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationReconcileReturns), func(ctx context.Context) {
			affected, err = e.returns.Reconcile(ctx)
		})
		return affected, err
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
}
