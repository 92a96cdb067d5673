package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
)

// ReturnModel is the persistence model for the Return aggregate root.
// The unique index on order_id allows one return per order.
type ReturnModel struct {
	AggregateModel
	OrderID      uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_returns_order"`
	UserID       uuid.UUID          `gorm:"type:uuid;not null;index"`
	Reason       string             `gorm:"type:text;not null"`
	Method       order.ReturnMethod `gorm:"type:varchar(20);not null;default:'refund'"`
	RefundAmount decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	Notes        string             `gorm:"type:text"`
	Status       order.ReturnStatus `gorm:"type:varchar(20);not null;default:'requested'"`
	ResolvedAt   *time.Time
}

// TableName returns the table name for GORM
func (ReturnModel) TableName() string {
	return "returns"
}

// ToDomain converts the persistence model to a domain Return
func (m *ReturnModel) ToDomain() *order.Return {
	return &order.Return{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OrderID:           m.OrderID,
		UserID:            m.UserID,
		Reason:            m.Reason,
		Method:            m.Method,
		RefundAmount:      m.RefundAmount,
		Notes:             m.Notes,
		Status:            m.Status,
		ResolvedAt:        m.ResolvedAt,
	}
}

// FromDomain populates the persistence model from a domain Return
func (m *ReturnModel) FromDomain(r *order.Return) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.OrderID = r.OrderID
	m.UserID = r.UserID
	m.Reason = r.Reason
	m.Method = r.Method
	m.RefundAmount = r.RefundAmount
	m.Notes = r.Notes
	m.Status = r.Status
	m.ResolvedAt = r.ResolvedAt
}

// ReturnModelFromDomain creates a new persistence model from a domain Return
func ReturnModelFromDomain(r *order.Return) *ReturnModel {
	m := &ReturnModel{}
	m.FromDomain(r)
	return m
}
