package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order aggregate root.
// Tracking scalars and the return summary are flattened into columns;
// the tracking history lives in order_tracking_points.
type OrderModel struct {
	AggregateModel
	UserID          uuid.UUID            `gorm:"type:uuid;not null;index:idx_orders_user_created,priority:1"`
	SessionRef      string               `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_session_ref"`
	Status          order.OrderStatus    `gorm:"type:varchar(20);not null;default:'pending'"`
	Amount          decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Currency        string               `gorm:"type:varchar(3);not null;default:'usd'"`
	ShippingAddress string               `gorm:"type:text"`
	Items           []OrderLineItemModel `gorm:"foreignKey:OrderID;references:ID"`
	TrackingPoints  []TrackingPointModel `gorm:"foreignKey:OrderID;references:ID"`

	TrackingStatus     order.TrackingStatus `gorm:"type:varchar(20);not null;default:'processing'"`
	CurrentLat         *float64
	CurrentLng         *float64
	DestinationLat     *float64
	DestinationLng     *float64
	DestinationAddress string `gorm:"type:varchar(500)"`

	ReturnRequested   bool                `gorm:"not null;default:false"`
	ReturnReason      string              `gorm:"type:text"`
	ReturnStatus      order.SummaryStatus `gorm:"type:varchar(20);not null;default:'none'"`
	ReturnResponse    string              `gorm:"type:text"`
	ReturnRequestedAt *time.Time
	ReturnResolvedAt  *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
// Items and TrackingPoints must be preloaded in sequence order.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		SessionRef:        m.SessionRef,
		Status:            m.Status,
		Amount:            m.Amount,
		Currency:          m.Currency,
		ShippingAddress:   m.ShippingAddress,
		LineItems:         make([]order.LineItem, len(m.Items)),
		Tracking: order.Tracking{
			Status:  m.TrackingStatus,
			History: make([]order.TrackingPoint, len(m.TrackingPoints)),
		},
		Return: order.ReturnSummary{
			Requested:       m.ReturnRequested,
			Reason:          m.ReturnReason,
			Status:          m.ReturnStatus,
			ResponseMessage: m.ReturnResponse,
			RequestedAt:     m.ReturnRequestedAt,
			ResolvedAt:      m.ReturnResolvedAt,
		},
	}
	if o.Return.Status == "" {
		o.Return.Status = order.SummaryStatusNone
	}
	for i, item := range m.Items {
		o.LineItems[i] = item.ToDomain()
	}
	for i, p := range m.TrackingPoints {
		o.Tracking.History[i] = p.ToDomain()
	}
	if m.CurrentLat != nil && m.CurrentLng != nil {
		o.Tracking.CurrentLocation = &order.GeoPoint{Lat: *m.CurrentLat, Lng: *m.CurrentLng}
	}
	if m.DestinationLat != nil && m.DestinationLng != nil {
		o.Tracking.Destination = &order.Destination{
			GeoPoint: order.GeoPoint{Lat: *m.DestinationLat, Lng: *m.DestinationLng},
			Address:  m.DestinationAddress,
		}
	}
	return o
}

// FromDomain populates the persistence model from a domain Order.
// Tracking history is not copied; points are appended individually.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.UserID = o.UserID
	m.SessionRef = o.SessionRef
	m.Status = o.Status
	m.Amount = o.Amount
	m.Currency = o.Currency
	m.ShippingAddress = o.ShippingAddress
	m.Items = make([]OrderLineItemModel, len(o.LineItems))
	for i, item := range o.LineItems {
		m.Items[i] = OrderLineItemModelFromDomain(o.ID, i, item)
	}

	m.TrackingStatus = o.Tracking.Status
	m.CurrentLat, m.CurrentLng = nil, nil
	if loc := o.Tracking.CurrentLocation; loc != nil {
		lat, lng := loc.Lat, loc.Lng
		m.CurrentLat, m.CurrentLng = &lat, &lng
	}
	m.DestinationLat, m.DestinationLng, m.DestinationAddress = nil, nil, ""
	if dst := o.Tracking.Destination; dst != nil {
		lat, lng := dst.Lat, dst.Lng
		m.DestinationLat, m.DestinationLng = &lat, &lng
		m.DestinationAddress = dst.Address
	}

	m.ReturnRequested = o.Return.Requested
	m.ReturnReason = o.Return.Reason
	m.ReturnStatus = o.Return.Status
	m.ReturnResponse = o.Return.ResponseMessage
	m.ReturnRequestedAt = o.Return.RequestedAt
	m.ReturnResolvedAt = o.Return.ResolvedAt
}

// MutableColumns returns the columns SaveWithLock may change
func (m *OrderModel) MutableColumns() map[string]any {
	return map[string]any{
		"status":              m.Status,
		"tracking_status":     m.TrackingStatus,
		"current_lat":         m.CurrentLat,
		"current_lng":         m.CurrentLng,
		"destination_lat":     m.DestinationLat,
		"destination_lng":     m.DestinationLng,
		"destination_address": m.DestinationAddress,
		"return_requested":    m.ReturnRequested,
		"return_reason":       m.ReturnReason,
		"return_status":       m.ReturnStatus,
		"return_response":     m.ReturnResponse,
		"return_requested_at": m.ReturnRequestedAt,
		"return_resolved_at":  m.ReturnResolvedAt,
		"version":             m.Version,
		"updated_at":          m.UpdatedAt,
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderLineItemModel is the persistence model for an order line
type OrderLineItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position  int             `gorm:"not null"`
	Name      string          `gorm:"type:varchar(500);not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderLineItemModel) TableName() string {
	return "order_line_items"
}

// ToDomain converts the persistence model to a domain LineItem
func (m *OrderLineItemModel) ToDomain() order.LineItem {
	return order.LineItem{
		Name:      m.Name,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		Amount:    m.Amount,
	}
}

// OrderLineItemModelFromDomain creates a line model at position pos
func OrderLineItemModelFromDomain(orderID uuid.UUID, pos int, item order.LineItem) OrderLineItemModel {
	return OrderLineItemModel{
		ID:        uuid.New(),
		OrderID:   orderID,
		Position:  pos,
		Name:      item.Name,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Amount:    item.Amount,
	}
}

// TrackingPointModel is one row of the append-only tracking history.
// The auto-increment key is the history sequence.
type TrackingPointModel struct {
	Sequence   int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index:idx_tracking_points_order"`
	Lat        float64   `gorm:"not null"`
	Lng        float64   `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TrackingPointModel) TableName() string {
	return "order_tracking_points"
}

// ToDomain converts the persistence model to a domain TrackingPoint
func (m *TrackingPointModel) ToDomain() order.TrackingPoint {
	return order.TrackingPoint{
		GeoPoint:   order.GeoPoint{Lat: m.Lat, Lng: m.Lng},
		RecordedAt: m.RecordedAt,
		Sequence:   m.Sequence,
	}
}

// TrackingPointModelFromDomain creates a history row for orderID
func TrackingPointModelFromDomain(orderID uuid.UUID, p order.TrackingPoint) *TrackingPointModel {
	return &TrackingPointModel{
		OrderID:    orderID,
		Lat:        p.Lat,
		Lng:        p.Lng,
		RecordedAt: p.RecordedAt,
	}
}
