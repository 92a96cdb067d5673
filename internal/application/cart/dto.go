package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpsertItemRequest adds a line or, with Replace, sets its quantity
type UpsertItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=999"`
	Replace   bool      `json:"replace"`
}

// CartLineResponse is a cart line enriched with current catalog data
type CartLineResponse struct {
	ProductID uuid.UUID        `json:"product_id"`
	VariantID uuid.UUID        `json:"variant_id"`
	Quantity  int              `json:"quantity"`
	Name      string           `json:"name,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Available bool             `json:"available"`
}

// CartResponse represents a user's cart
type CartResponse struct {
	UserID        uuid.UUID          `json:"user_id"`
	Lines         []CartLineResponse `json:"lines"`
	TotalQuantity int                `json:"total_quantity"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	UpdatedAt     *time.Time         `json:"updated_at,omitempty"`
}
