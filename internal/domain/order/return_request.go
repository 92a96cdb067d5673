package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// ReturnStatus is the lifecycle status of a return request
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusReceived  ReturnStatus = "received"
	ReturnStatusRefunded  ReturnStatus = "refunded"
	ReturnStatusRejected  ReturnStatus = "rejected"
)

var returnStatusAliases = map[string]ReturnStatus{
	"solicitado":   ReturnStatusRequested,
	"pending":      ReturnStatusRequested,
	"aprobado":     ReturnStatusApproved,
	"recibido":     ReturnStatusReceived,
	"reembolsado":  ReturnStatusRefunded,
	"rechazado":    ReturnStatusRejected,
	"completed":    ReturnStatusRefunded,
	"processed":    ReturnStatusRefunded,
	"en_revision":  ReturnStatusRequested,
	"under_review": ReturnStatusRequested,
}

// ParseReturnStatus normalizes s to a canonical ReturnStatus
func ParseReturnStatus(s string) (ReturnStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	status := ReturnStatus(key)
	if status.IsValid() {
		return status, nil
	}
	if alias, ok := returnStatusAliases[key]; ok {
		return alias, nil
	}
	return "", shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown return status %q", s))
}

// IsValid checks if the status is a canonical ReturnStatus
func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnStatusRequested, ReturnStatusApproved, ReturnStatusReceived,
		ReturnStatusRefunded, ReturnStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of ReturnStatus
func (s ReturnStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the return is resolved
func (s ReturnStatus) IsTerminal() bool {
	return s == ReturnStatusRefunded || s == ReturnStatusRejected
}

// CanTransitionTo checks if the status can move to target
func (s ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	switch s {
	case ReturnStatusRequested:
		return target == ReturnStatusApproved || target == ReturnStatusRejected
	case ReturnStatusApproved:
		return target == ReturnStatusReceived || target == ReturnStatusRejected
	case ReturnStatusReceived:
		return target == ReturnStatusRefunded
	}
	return false
}

// ReturnMethod is how the customer is compensated
type ReturnMethod string

const (
	ReturnMethodRefund   ReturnMethod = "refund"
	ReturnMethodExchange ReturnMethod = "exchange"
)

// ParseReturnMethod defaults to refund when s is empty
func ParseReturnMethod(s string) (ReturnMethod, error) {
	switch ReturnMethod(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReturnMethodRefund:
		return ReturnMethodRefund, nil
	case ReturnMethodExchange:
		return ReturnMethodExchange, nil
	}
	return "", shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown return method %q", s))
}

// Return is the standalone return request aggregate.
// Its status is mirrored into Order.Return.
type Return struct {
	shared.BaseAggregateRoot
	OrderID      uuid.UUID
	UserID       uuid.UUID
	Reason       string
	Method       ReturnMethod
	RefundAmount decimal.Decimal
	Notes        string
	Status       ReturnStatus
	ResolvedAt   *time.Time
}

// NewReturn opens a return for order. The refund amount defaults to the
// order total.
func NewReturn(o *Order, reason string, method ReturnMethod, actor *shared.Actor) (*Return, error) {
	if o == nil {
		return nil, shared.ErrInvalidInput.WithMessage("order is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.ErrInvalidInput.WithMessage("reason is required")
	}
	if method == "" {
		method = ReturnMethodRefund
	}

	r := &Return{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           o.ID,
		UserID:            o.UserID,
		Reason:            reason,
		Method:            method,
		RefundAmount:      o.Amount,
		Status:            ReturnStatusRequested,
	}
	r.AddDomainEvent(NewReturnRequestedEvent(r, actor))
	return r, nil
}

// ChangeStatus moves the return to target, recording notes and an optional
// adjusted refund amount. Empty notes keep the current ones. When target is
// the current status only notes and refund amount are updated.
func (r *Return) ChangeStatus(target ReturnStatus, notes string, refundAmount *decimal.Decimal, actor *shared.Actor) error {
	if !target.IsValid() {
		return shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown return status %q", target))
	}
	sameStatus := target == r.Status
	if !sameStatus && !r.Status.CanTransitionTo(target) {
		return shared.ErrInvalidState.WithMessage(fmt.Sprintf("cannot move return from %s to %s", r.Status, target))
	}
	if refundAmount != nil && refundAmount.IsNegative() {
		return shared.ErrInvalidInput.WithMessage("refund_amount cannot be negative")
	}

	now := time.Now()
	if refundAmount != nil {
		r.RefundAmount = *refundAmount
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		r.Notes = notes
	}
	r.UpdatedAt = now
	if sameStatus {
		return nil
	}

	from := r.Status
	r.Status = target
	r.ResolvedAt = &now
	r.AddDomainEvent(NewReturnStatusChangedEvent(r, from, actor))
	return nil
}

// MarkRemoved records the removal event; the caller deletes the record
func (r *Return) MarkRemoved(actor *shared.Actor) {
	r.AddDomainEvent(NewReturnRemovedEvent(r, actor))
}

// SummaryStatus mirrors ReturnStatus with an extra "none" for orders that
// never had a return
type SummaryStatus string

const SummaryStatusNone SummaryStatus = "none"

// ReturnSummary is the return state embedded in an order
type ReturnSummary struct {
	Requested       bool          `json:"requested"`
	Reason          string        `json:"reason,omitempty"`
	Status          SummaryStatus `json:"status"`
	ResponseMessage string        `json:"response_message,omitempty"`
	RequestedAt     *time.Time    `json:"requested_at,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}

// EmptyReturnSummary is the state of an order with no return
func EmptyReturnSummary() ReturnSummary {
	return ReturnSummary{Status: SummaryStatusNone}
}

// IsActive reports whether a return exists for the order
func (s ReturnSummary) IsActive() bool {
	return s.Status != "" && s.Status != SummaryStatusNone
}

// Matches reports whether the summary reflects r
func (s ReturnSummary) Matches(r *Return) bool {
	return s.Requested &&
		s.Status == SummaryStatus(r.Status) &&
		s.Reason == r.Reason &&
		s.ResponseMessage == r.Notes
}
