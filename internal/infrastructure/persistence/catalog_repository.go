package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCatalog resolves variant prices from product_variants
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog creates a new GormCatalog
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// FindVariant returns the active variant or ErrNotFound
func (c *GormCatalog) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*checkout.Variant, error) {
	var m models.ProductVariantModel
	if err := c.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", variantID, productID).
		First(&m).Error; err != nil {
		return nil, wrapDBError(err, "find variant")
	}
	if !m.Active {
		return nil, shared.ErrNotFound.WithMessage("variant is not available")
	}
	return m.ToDomain(), nil
}

var _ checkout.Catalog = (*GormCatalog)(nil)
