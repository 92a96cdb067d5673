package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReturnRepository implements ReturnRepository using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

func (r *GormReturnRepository) findOne(ctx context.Context, query string, args ...any) (*order.Return, error) {
	var m models.ReturnModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		return nil, wrapDBError(err, "find return")
	}
	return m.ToDomain(), nil
}

// FindByID finds a return by its ID
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Return, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByOrderID finds the return opened for orderID
func (r *GormReturnRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*order.Return, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

// FindAll lists returns, newest first unless filter sorts otherwise
func (r *GormReturnRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Return, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.ReturnModel{}), filter)
}

// FindByUser lists returns opened by userID newest first
func (r *GormReturnRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]order.Return, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.ReturnModel{}).Where("user_id = ?", userID), filter)
}

func (r *GormReturnRepository) list(query *gorm.DB, filter shared.Filter) ([]order.Return, int64, error) {
	filter = filter.Normalize()

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError(err, "count returns")
	}

	var rows []models.ReturnModel
	if err := query.Order(orderClause(filter, ReturnSortFields)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError(err, "list returns")
	}

	returns := make([]order.Return, len(rows))
	for i := range rows {
		returns[i] = *rows[i].ToDomain()
	}
	return returns, total, nil
}

// Create inserts a return. A second return for the same order violates
// idx_returns_order and yields ErrAlreadyExists.
func (r *GormReturnRepository) Create(ctx context.Context, ret *order.Return) error {
	return wrapDBError(r.db.WithContext(ctx).Create(models.ReturnModelFromDomain(ret)).Error, "create return")
}

// SaveWithLock persists status, notes and refund amount with an
// optimistic version check
func (r *GormReturnRepository) SaveWithLock(ctx context.Context, ret *order.Return) error {
	expected := ret.Version
	ret.Version++
	ret.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.ReturnModel{}).
		Where("id = ? AND version = ?", ret.ID, expected).
		Updates(map[string]any{
			"status":        ret.Status,
			"notes":         ret.Notes,
			"refund_amount": ret.RefundAmount,
			"resolved_at":   ret.ResolvedAt,
			"version":       ret.Version,
			"updated_at":    ret.UpdatedAt,
		})
	if result.Error != nil {
		ret.Version = expected
		return wrapDBError(result.Error, "save return")
	}
	if result.RowsAffected == 0 {
		ret.Version = expected
		return shared.ErrConcurrencyConflict.WithMessage("The return has been modified by another user")
	}
	return nil
}

// Delete removes a return by ID
func (r *GormReturnRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ReturnModel{})
	if result.Error != nil {
		return wrapDBError(result.Error, "delete return")
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteByOrderID removes the return of orderID if there is one
func (r *GormReturnRepository) DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error {
	return wrapDBError(
		r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.ReturnModel{}).Error,
		"delete return by order",
	)
}

var _ order.ReturnRepository = (*GormReturnRepository)(nil)
