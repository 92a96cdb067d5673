package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
)

// ==================== Order DTOs ====================

// UpdateOrderStatusRequest carries an administrative status change.
// Legacy display labels are accepted and mapped to canonical values.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

// LineItemResponse represents a purchased line
type LineItemResponse struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	SessionRef      string              `json:"session_ref"`
	Status          string              `json:"status"`
	LineItems       []LineItemResponse  `json:"line_items"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	ShippingAddress string              `json:"shipping_address"`
	Tracking        TrackingResponse    `json:"tracking"`
	Return          order.ReturnSummary `json:"return"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Version         int                 `json:"version"`
}

// ToOrderResponse converts a domain Order to OrderResponse
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]LineItemResponse, len(o.LineItems))
	for i, item := range o.LineItems {
		items[i] = LineItemResponse{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total(),
		}
	}
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		SessionRef:      o.SessionRef,
		Status:          string(o.Status),
		LineItems:       items,
		Amount:          o.Amount,
		Currency:        o.Currency,
		ShippingAddress: o.ShippingAddress,
		Tracking:        ToTrackingResponse(o.ID, o.Tracking),
		Return:          o.Return,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Version:         o.Version,
	}
}

// ToOrderResponses converts a slice of orders
func ToOrderResponses(orders []order.Order) []OrderResponse {
	responses := make([]OrderResponse, len(orders))
	for i := range orders {
		responses[i] = ToOrderResponse(&orders[i])
	}
	return responses
}

// ==================== Tracking DTOs ====================

// UpdateLocationRequest records a new location fix
type UpdateLocationRequest struct {
	Lat    *float64 `json:"lat" binding:"required,latitude"`
	Lng    *float64 `json:"lng" binding:"required,longitude"`
	Status string   `json:"status" binding:"omitempty,tracking_status"`
}

// SetDestinationRequest sets the delivery target
type SetDestinationRequest struct {
	Lat     *float64 `json:"lat" binding:"required,latitude"`
	Lng     *float64 `json:"lng" binding:"required,longitude"`
	Address string   `json:"address" binding:"max=500"`
}

// GeoPointResponse is a coordinate pair
type GeoPointResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DestinationResponse is the delivery target
type DestinationResponse struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// TrackingPointResponse is one history entry
type TrackingPointResponse struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
}

// TrackingResponse represents an order's shipment tracking
type TrackingResponse struct {
	OrderID         uuid.UUID               `json:"order_id"`
	Status          string                  `json:"status"`
	CurrentLocation *GeoPointResponse       `json:"current_location,omitempty"`
	Destination     *DestinationResponse    `json:"destination,omitempty"`
	History         []TrackingPointResponse `json:"history"`
}

// ToTrackingResponse converts embedded tracking state
func ToTrackingResponse(orderID uuid.UUID, t order.Tracking) TrackingResponse {
	resp := TrackingResponse{
		OrderID: orderID,
		Status:  string(t.Status),
		History: make([]TrackingPointResponse, len(t.History)),
	}
	if t.CurrentLocation != nil {
		resp.CurrentLocation = &GeoPointResponse{Lat: t.CurrentLocation.Lat, Lng: t.CurrentLocation.Lng}
	}
	if t.Destination != nil {
		resp.Destination = &DestinationResponse{Lat: t.Destination.Lat, Lng: t.Destination.Lng, Address: t.Destination.Address}
	}
	for i, p := range t.History {
		resp.History[i] = TrackingPointResponse{Lat: p.Lat, Lng: p.Lng, Timestamp: p.RecordedAt, Sequence: p.Sequence}
	}
	return resp
}

// ==================== Return DTOs ====================

// RequestReturnRequest opens a return for an order
type RequestReturnRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
	Reason  string    `json:"reason" binding:"required,min=1,max=1000"`
	Method  string    `json:"method" binding:"omitempty,oneof=refund exchange"`
}

// UpdateReturnStatusRequest moves a return through its workflow
type UpdateReturnStatusRequest struct {
	Status       string           `json:"status" binding:"required,return_status"`
	Notes        string           `json:"notes" binding:"max=1000"`
	RefundAmount *decimal.Decimal `json:"refund_amount"`
}

// ReturnResponse represents a return in API responses
type ReturnResponse struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	UserID       uuid.UUID       `json:"user_id"`
	Reason       string          `json:"reason"`
	Method       string          `json:"method"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Notes        string          `json:"notes,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
}

// ToReturnResponse converts a domain Return to ReturnResponse
func ToReturnResponse(r *order.Return) ReturnResponse {
	return ReturnResponse{
		ID:           r.ID,
		OrderID:      r.OrderID,
		UserID:       r.UserID,
		Reason:       r.Reason,
		Method:       string(r.Method),
		RefundAmount: r.RefundAmount,
		Notes:        r.Notes,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		ResolvedAt:   r.ResolvedAt,
	}
}

// ToReturnResponses converts a slice of returns
func ToReturnResponses(returns []order.Return) []ReturnResponse {
	responses := make([]ReturnResponse, len(returns))
	for i := range returns {
		responses[i] = ToReturnResponse(&returns[i])
	}
	return responses
}

// RequestReturnResult reports the outcome of a return request. A second
// request for the same order is a soft failure: Success is false and
// nothing is written.
type RequestReturnResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Return  *ReturnResponse `json:"return,omitempty"`
}
