// Package checkout defines the ports the checkout flow depends on: the
// hosted payment provider and the product catalog.
package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus is the provider-side state of a checkout session
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// PaymentStatus is the provider-side payment state of a checkout session
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// PriceLine is one line sent to the provider when creating a session
type PriceLine struct {
	Name string
	// UnitAmount is the price in minor units (cents)
	UnitAmount int64
	Quantity   int64
}

// SessionRequest describes a payment intent to create
type SessionRequest struct {
	UserID     uuid.UUID
	Currency   string
	Lines      []PriceLine
	SuccessURL string
	CancelURL  string
	Countries  []string
}

// Address is the shipping address captured by the provider
type Address struct {
	Line1 string
	City  string
}

// Format joins the non-empty parts with ", "
func (a Address) Format() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{a.Line1, a.City} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Session is the provider's view of a checkout session
type Session struct {
	Ref           string
	URL           string
	Status        SessionStatus
	PaymentStatus PaymentStatus
	// UserID is the customer the session was created for, uuid.Nil when
	// the provider does not report one
	UserID      uuid.UUID
	Currency    string
	AmountTotal int64 // minor units
	Address     Address
}

// IsPaid reports whether the customer finished paying for the session
func (s *Session) IsPaid() bool {
	return s.Status == SessionStatusComplete &&
		(s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired)
}

// BelongsTo reports whether the session was created for userID
func (s *Session) BelongsTo(userID uuid.UUID) bool {
	return s.UserID != uuid.Nil && s.UserID == userID
}

// Amount returns AmountTotal in major units
func (s *Session) Amount() decimal.Decimal {
	return decimal.New(s.AmountTotal, -2)
}

// SessionLineItem is one purchased line reported by the provider
type SessionLineItem struct {
	Description string
	Quantity    int64
	AmountTotal int64 // minor units, quantity included
}

// PaymentGateway wraps the hosted checkout provider
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, ref string) (*Session, error)
	ListLineItems(ctx context.Context, ref string) ([]SessionLineItem, error)

	// ExpireSession closes an open session so it can no longer be paid
	ExpireSession(ctx context.Context, ref string) (*Session, error)
}
