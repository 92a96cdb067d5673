package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/checkout"
)

// ProductVariantModel is the read model of sellable variants maintained
// by the catalog service. This backend only reads it.
type ProductVariantModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Name        string          `gorm:"type:varchar(200)"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Active      bool            `gorm:"not null;default:true"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a checkout Variant
func (m *ProductVariantModel) ToDomain() *checkout.Variant {
	return &checkout.Variant{
		ProductID:   m.ProductID,
		VariantID:   m.ID,
		ProductName: m.ProductName,
		VariantName: m.Name,
		Price:       m.Price,
		Active:      m.Active,
	}
}
