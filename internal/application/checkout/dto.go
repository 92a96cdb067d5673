package checkout

import "github.com/google/uuid"

// CheckoutLineInput is one cart line submitted with a checkout request
type CheckoutLineInput struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// CreateCheckoutRequest starts a hosted checkout. When Lines is empty the
// user's stored cart is used.
type CreateCheckoutRequest struct {
	Lines []CheckoutLineInput `json:"lines" binding:"omitempty,dive"`
}

// CreateCheckoutResponse carries the hosted payment page
type CreateCheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}
