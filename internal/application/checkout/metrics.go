package checkout

import "context"

// Metrics records checkout outcomes
type Metrics interface {
	SessionCreated(ctx context.Context)
	OrderRecorded(ctx context.Context, status string, amountCents int64)
}

type noopMetrics struct{}

func (noopMetrics) SessionCreated(context.Context) {}
func (noopMetrics) OrderRecorded(context.Context, string, int64) {}
