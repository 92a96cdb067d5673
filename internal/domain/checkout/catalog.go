package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Variant is the sellable unit resolved at checkout time
type Variant struct {
	ProductID   uuid.UUID
	VariantID   uuid.UUID
	ProductName string
	VariantName string
	Price       decimal.Decimal
	Active      bool
}

// DisplayName combines product and variant names
func (v Variant) DisplayName() string {
	if v.VariantName == "" {
		return v.ProductName
	}
	return v.ProductName + " - " + v.VariantName
}

// UnitAmountCents returns round(price * 100)
func (v Variant) UnitAmountCents() int64 {
	return v.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Catalog resolves current prices. Missing variants yield shared.ErrNotFound.
type Catalog interface {
	FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*Variant, error)
}
