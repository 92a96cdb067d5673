package persistence

import (
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// Models lists every persistence model owned by this service
func Models() []any {
	return []any{
		&models.OrderModel{},
		&models.OrderLineItemModel{},
		&models.TrackingPointModel{},
		&models.ReturnModel{},
		&models.AuditEventModel{},
		&models.ProductVariantModel{},
	}
}

// AutoMigrate creates the schema from the models. Deployed databases use
// the SQL migrations; this is for tests and local SQLite runs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
