package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("TrackingPoints", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func (r *GormOrderRepository) findOne(db *gorm.DB, query string, args ...any) (*order.Order, error) {
	var m models.OrderModel
	if err := r.withAssociations(db).Where(query, args...).First(&m).Error; err != nil {
		return nil, wrapDBError(err, "find order")
	}
	return m.ToDomain(), nil
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate loads the order with a row lock held until the
// surrounding transaction ends
func (r *GormOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

// FindBySessionRef finds the order created from a payment session
func (r *GormOrderRepository) FindBySessionRef(ctx context.Context, sessionRef string) (*order.Order, error) {
	return r.findOne(r.db.WithContext(ctx), "session_ref = ?", sessionRef)
}

// FindAll lists orders, newest first unless filter sorts otherwise
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)
}

// FindByUser lists orders placed by userID newest first
func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]order.Order, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("user_id = ?", userID), filter)
}

func (r *GormOrderRepository) list(query *gorm.DB, filter shared.Filter) ([]order.Order, int64, error) {
	filter = filter.Normalize()

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError(err, "count orders")
	}

	var rows []models.OrderModel
	if err := r.withAssociations(query).
		Order(orderClause(filter, OrderSortFields)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError(err, "list orders")
	}

	orders := make([]order.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, total, nil
}

// Create inserts the order and its line items
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m := models.OrderModelFromDomain(o)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
			return err
		}
		if len(m.Items) > 0 {
			if err := tx.Create(&m.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrapDBError(err, "create order")
}

// SaveWithLock persists mutable order state with an optimistic version
// check. Line items, amount and session are never rewritten.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	expected := o.Version
	o.Version++
	o.UpdatedAt = time.Now()

	m := models.OrderModelFromDomain(o)
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND version = ?", o.ID, expected).
		Updates(m.MutableColumns())
	if result.Error != nil {
		o.Version = expected
		return wrapDBError(result.Error, "save order")
	}
	if result.RowsAffected == 0 {
		o.Version = expected
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return wrapDBError(err, "save order")
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict.WithMessage("The order has been modified by another user")
	}
	return nil
}

// AppendTrackingPoint inserts one history row; the generated key is the
// point's sequence
func (r *GormOrderRepository) AppendTrackingPoint(ctx context.Context, orderID uuid.UUID, point order.TrackingPoint) (order.TrackingPoint, error) {
	m := models.TrackingPointModelFromDomain(orderID, point)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return order.TrackingPoint{}, wrapDBError(err, "append tracking point")
	}
	return m.ToDomain(), nil
}

// Delete removes the order, its line items and its tracking history
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.TrackingPointModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderLineItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.OrderModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	return wrapDBError(err, "delete order")
}

var _ order.OrderRepository = (*GormOrderRepository)(nil)
