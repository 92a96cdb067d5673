package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLifecycleMetricsProvider implements LifecycleMetricsProvider using GORM.
// It aggregates the orders and returns tables directly.
type GormLifecycleMetricsProvider struct {
	db *gorm.DB
}

// NewGormLifecycleMetricsProvider creates a new GormLifecycleMetricsProvider.
func NewGormLifecycleMetricsProvider(db *gorm.DB) *GormLifecycleMetricsProvider {
	return &GormLifecycleMetricsProvider{db: db}
}

type statusCount struct {
	Status string `gorm:"column:status"`
	Total  int64  `gorm:"column:total"`
}

func (p *GormLifecycleMetricsProvider) countByStatus(ctx context.Context, table, column string) (map[string]int64, error) {
	var rows []statusCount
	err := p.db.WithContext(ctx).
		Table(table).
		Select(column + " AS status, COUNT(*) AS total").
		Group(column).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// OrdersByStatus returns the number of orders per order status.
func (p *GormLifecycleMetricsProvider) OrdersByStatus(ctx context.Context) (map[string]int64, error) {
	return p.countByStatus(ctx, "orders", "status")
}

// ReturnsByStatus returns the number of returns per return status.
func (p *GormLifecycleMetricsProvider) ReturnsByStatus(ctx context.Context) (map[string]int64, error) {
	return p.countByStatus(ctx, "returns", "status")
}
