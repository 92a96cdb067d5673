package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// LineItem is one purchased line as reported by the payment provider.
// Amount is the provider's line total; UnitPrice is derived from it and may
// carry a rounding remainder.
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// Total returns the charged line total, falling back to quantity times unit
// price for lines recorded without one
func (i LineItem) Total() decimal.Decimal {
	if !i.Amount.IsZero() {
		return i.Amount
	}
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the authoritative purchase record.
// LineItems and Amount are fixed at creation; the aggregate exposes no
// operation that changes them.
type Order struct {
	shared.BaseAggregateRoot
	UserID          uuid.UUID
	SessionRef      string
	Status          OrderStatus
	LineItems       []LineItem
	Amount          decimal.Decimal
	Currency        string
	ShippingAddress string
	Tracking        Tracking
	Return          ReturnSummary
}

// NewOrderInput carries the data resolved from a payment session
type NewOrderInput struct {
	UserID          uuid.UUID
	SessionRef      string
	Status          OrderStatus
	LineItems       []LineItem
	Amount          decimal.Decimal
	Currency        string
	ShippingAddress string
}

// NewOrder materializes an order from a resolved payment session
func NewOrder(in NewOrderInput, actor *shared.Actor) (*Order, error) {
	if in.UserID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("user_id is required")
	}
	if strings.TrimSpace(in.SessionRef) == "" {
		return nil, shared.ErrInvalidInput.WithMessage("session reference is required")
	}
	if !in.Status.IsValid() {
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown order status %q", in.Status))
	}
	if in.Amount.IsNegative() {
		return nil, shared.ErrInvalidInput.WithMessage("amount cannot be negative")
	}
	for _, item := range in.LineItems {
		if item.Quantity < 1 {
			return nil, shared.ErrInvalidInput.WithMessage("line item quantity must be at least 1")
		}
	}

	items := make([]LineItem, len(in.LineItems))
	copy(items, in.LineItems)

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            in.UserID,
		SessionRef:        in.SessionRef,
		Status:            in.Status,
		LineItems:         items,
		Amount:            in.Amount,
		Currency:          in.Currency,
		ShippingAddress:   in.ShippingAddress,
		Tracking:          NewTracking(),
		Return:            EmptyReturnSummary(),
	}

	if o.Status == OrderStatusCancelled {
		o.AddDomainEvent(NewOrderCancelledEvent(o, actor))
	} else {
		o.AddDomainEvent(NewOrderCreatedEvent(o, actor))
	}
	return o, nil
}

// UpdateStatus applies an administrative status change.
// Setting the current status again is a no-op and reports changed=false.
func (o *Order) UpdateStatus(target OrderStatus, actor *shared.Actor) (changed bool, err error) {
	if !target.IsValid() {
		return false, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown order status %q", target))
	}
	if target == o.Status {
		return false, nil
	}
	if !o.Status.CanTransitionTo(target) {
		return false, shared.ErrInvalidState.WithMessage(fmt.Sprintf("cannot move order from %s to %s", o.Status, target))
	}

	from := o.Status
	o.Status = target
	o.Touch()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, from, actor))
	return true, nil
}

// RecordLocation appends a location fix to the tracking history and
// optionally advances the tracking status. Status never moves backwards.
// The returned point has no sequence yet; storage assigns it.
func (o *Order) RecordLocation(point GeoPoint, status *TrackingStatus, at time.Time, actor *shared.Actor) (TrackingPoint, error) {
	if _, err := NewGeoPoint(point.Lat, point.Lng); err != nil {
		return TrackingPoint{}, err
	}
	if status != nil {
		if !status.IsValid() {
			return TrackingPoint{}, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown tracking status %q", *status))
		}
		if status.Precedes(o.Tracking.Status) {
			return TrackingPoint{}, shared.ErrInvalidState.WithMessage(
				fmt.Sprintf("tracking status cannot go back from %s to %s", o.Tracking.Status, *status))
		}
	}

	tp := TrackingPoint{GeoPoint: point, RecordedAt: at}
	o.Tracking.History = append(o.Tracking.History, tp)
	current := point
	o.Tracking.CurrentLocation = &current
	if status != nil {
		o.Tracking.Status = *status
	}
	o.Touch()

	o.AddDomainEvent(NewTrackingUpdatedEvent(o, point, actor))
	return tp, nil
}

// SetDestination sets the delivery target shown on the tracking map
func (o *Order) SetDestination(point GeoPoint, address string) error {
	if _, err := NewGeoPoint(point.Lat, point.Lng); err != nil {
		return err
	}
	o.Tracking.Destination = &Destination{GeoPoint: point, Address: strings.TrimSpace(address)}
	o.Touch()
	return nil
}

// RequestReturn marks the embedded summary as requested.
// Fails with ErrDuplicateReturn when a return already exists.
func (o *Order) RequestReturn(reason string, at time.Time) error {
	if o.Return.IsActive() {
		return shared.ErrDuplicateReturn
	}
	o.Return = ReturnSummary{
		Requested:   true,
		Reason:      strings.TrimSpace(reason),
		Status:      SummaryStatus(ReturnStatusRequested),
		RequestedAt: &at,
	}
	o.Touch()
	return nil
}

// SyncReturn copies the standalone return state into the embedded summary
func (o *Order) SyncReturn(r *Return) {
	requestedAt := o.Return.RequestedAt
	if requestedAt == nil {
		created := r.CreatedAt
		requestedAt = &created
	}
	o.Return = ReturnSummary{
		Requested:       true,
		Reason:          r.Reason,
		Status:          SummaryStatus(r.Status),
		ResponseMessage: r.Notes,
		RequestedAt:     requestedAt,
		ResolvedAt:      r.ResolvedAt,
	}
	o.Touch()
}

// ClearReturn resets the embedded summary after the return is removed
func (o *Order) ClearReturn() {
	o.Return = EmptyReturnSummary()
	o.Touch()
}

// MarkDeleted records the deletion event; the caller removes the record
func (o *Order) MarkDeleted(actor *shared.Actor) {
	o.AddDomainEvent(NewOrderDeletedEvent(o, actor))
}

// AmountCents returns the order total in minor units
func (o *Order) AmountCents() int64 {
	return o.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
