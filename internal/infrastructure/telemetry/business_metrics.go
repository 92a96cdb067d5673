package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks the order lifecycle: checkout sessions, recorded
// orders, live tracking delivery and the state of orders and returns.
// It satisfies the metrics ports of the checkout and order services.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	checkoutSessionsTotal *Counter
	ordersCreatedTotal    *Counter
	orderAmountCentsTotal *Counter
	broadcastFailures     *Counter
	sseClients            *UpDownCounter

	ordersByStatus  *Gauge
	returnsByStatus *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	provider LifecycleMetricsProvider
}

// LifecycleMetricsProvider provides aggregate counts for periodic collection.
type LifecycleMetricsProvider interface {
	OrdersByStatus(ctx context.Context) (map[string]int64, error)
	ReturnsByStatus(ctx context.Context) (map[string]int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter    metric.Meter
	Logger   *zap.Logger
	Provider LifecycleMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:    cfg.Meter,
		logger:   logger,
		stopChan: make(chan struct{}),
		provider: cfg.Provider,
	}

	var err error
	if bm.checkoutSessionsTotal, err = NewCounter(cfg.Meter,
		"checkout_sessions_created_total",
		"Total number of hosted checkout sessions created",
		"{sessions}",
	); err != nil {
		return nil, err
	}
	if bm.ordersCreatedTotal, err = NewCounter(cfg.Meter,
		"orders_created_total",
		"Total number of orders recorded from checkout sessions",
		"{orders}",
	); err != nil {
		return nil, err
	}
	if bm.orderAmountCentsTotal, err = NewCounter(cfg.Meter,
		"order_amount_cents_total",
		"Total recorded order amount in cents",
		"{cents}",
	); err != nil {
		return nil, err
	}
	if bm.broadcastFailures, err = NewCounter(cfg.Meter,
		"tracking_broadcast_failures_total",
		"Tracking updates that could not be published to live subscribers",
		"{updates}",
	); err != nil {
		return nil, err
	}
	if bm.sseClients, err = NewUpDownCounter(cfg.Meter,
		"tracking_stream_clients",
		"Currently connected live tracking stream clients",
		"{clients}",
	); err != nil {
		return nil, err
	}
	if bm.ordersByStatus, err = NewGauge(cfg.Meter,
		"orders_by_status",
		"Current number of orders per status",
		"{orders}",
	); err != nil {
		return nil, err
	}
	if bm.returnsByStatus, err = NewGauge(cfg.Meter,
		"returns_by_status",
		"Current number of returns per status",
		"{returns}",
	); err != nil {
		return nil, err
	}

	return bm, nil
}

// SessionCreated records a created checkout session.
func (bm *BusinessMetrics) SessionCreated(ctx context.Context) {
	bm.checkoutSessionsTotal.Inc(ctx)
}

// OrderRecorded records an order materialized from a session with its
// final status and amount.
func (bm *BusinessMetrics) OrderRecorded(ctx context.Context, status string, amountCents int64) {
	bm.ordersCreatedTotal.Inc(ctx, AttrOrderStatus.String(status))
	if amountCents > 0 {
		bm.orderAmountCentsTotal.Add(ctx, amountCents, AttrOrderStatus.String(status))
	}
}

// BroadcastFailed records a tracking update that could not be published.
func (bm *BusinessMetrics) BroadcastFailed(ctx context.Context) {
	bm.broadcastFailures.Inc(ctx)
}

// StreamClientConnected records a new live tracking stream client.
func (bm *BusinessMetrics) StreamClientConnected(ctx context.Context) {
	bm.sseClients.Add(ctx, 1)
}

// StreamClientDisconnected records a closed live tracking stream client.
func (bm *BusinessMetrics) StreamClientDisconnected(ctx context.Context) {
	bm.sseClients.Add(ctx, -1)
}

// StartPeriodicCollection starts periodic collection of the status gauges.
// It is non-blocking; use Stop to end collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.Collect(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.Collect(ctx)
		}
	}
}

// Collect records the status gauges once.
func (bm *BusinessMetrics) Collect(ctx context.Context) {
	if bm.provider == nil {
		bm.logger.Debug("No lifecycle provider configured, skipping gauge collection")
		return
	}

	if orders, err := bm.provider.OrdersByStatus(ctx); err != nil {
		bm.logger.Warn("Failed to collect order counts", zap.Error(err))
	} else {
		recordByStatus(ctx, bm.ordersByStatus, AttrOrderStatus, orders)
	}

	if returns, err := bm.provider.ReturnsByStatus(ctx); err != nil {
		bm.logger.Warn("Failed to collect return counts", zap.Error(err))
	} else {
		recordByStatus(ctx, bm.returnsByStatus, AttrReturnStatus, returns)
	}
}

func recordByStatus(ctx context.Context, g *Gauge, key attribute.Key, counts map[string]int64) {
	for status, n := range counts {
		g.Record(ctx, n, key.String(status))
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
