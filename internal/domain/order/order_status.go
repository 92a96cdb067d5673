package order

import (
	"fmt"
	"strings"

	"github.com/storefront/backend/internal/domain/shared"
)

// OrderStatus is the payment/fulfilment status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusSucceeded  OrderStatus = "succeeded"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// orderStatusAliases maps display labels used by older clients and the
// back office onto canonical values.
var orderStatusAliases = map[string]OrderStatus{
	"pendiente":  OrderStatusPending,
	"procesando": OrderStatusProcessing,
	"pagado":     OrderStatusSucceeded,
	"paid":       OrderStatusSucceeded,
	"cancelado":  OrderStatusCancelled,
	"canceled":   OrderStatusCancelled,
	"fallido":    OrderStatusFailed,
	"enviado":    OrderStatusShipped,
	"entregado":  OrderStatusDelivered,
}

// AllOrderStatuses returns every canonical order status
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusSucceeded,
		OrderStatusCancelled,
		OrderStatusFailed,
		OrderStatusShipped,
		OrderStatusDelivered,
	}
}

// ParseOrderStatus normalizes s to a canonical OrderStatus.
// Unknown values yield ErrInvalidInput.
func ParseOrderStatus(s string) (OrderStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	status := OrderStatus(key)
	if status.IsValid() {
		return status, nil
	}
	if alias, ok := orderStatusAliases[key]; ok {
		return alias, nil
	}
	return "", shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown order status %q", s))
}

// IsValid checks if the status is a canonical OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusSucceeded,
		OrderStatusCancelled, OrderStatusFailed, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

// CanTransitionTo checks if the status can move to target
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return target == OrderStatusProcessing || target == OrderStatusSucceeded ||
			target == OrderStatusCancelled || target == OrderStatusFailed
	case OrderStatusProcessing:
		return target == OrderStatusSucceeded || target == OrderStatusCancelled ||
			target == OrderStatusFailed || target == OrderStatusShipped
	case OrderStatusSucceeded:
		return target == OrderStatusProcessing || target == OrderStatusShipped || target == OrderStatusCancelled
	case OrderStatusShipped:
		return target == OrderStatusDelivered
	case OrderStatusFailed:
		return target == OrderStatusPending
	case OrderStatusCancelled, OrderStatusDelivered:
		return false
	}
	return false
}
