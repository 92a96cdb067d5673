package persistence

import (
	"context"

	"github.com/storefront/backend/internal/domain/audit"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditRepository appends audit entries to audit_events
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts entry
func (r *GormAuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	return wrapDBError(r.db.WithContext(ctx).Create(models.AuditEventModelFromDomain(entry)).Error, "append audit event")
}

// FindByEntity returns the trail of one entity oldest first
func (r *GormAuditRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]audit.Entry, error) {
	var rows []models.AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, wrapDBError(err, "find audit events")
	}
	entries := make([]audit.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

var _ audit.Repository = (*GormAuditRepository)(nil)
