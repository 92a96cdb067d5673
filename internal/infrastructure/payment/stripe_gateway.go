package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"go.uber.org/zap"
)

// StripeCheckoutGateway implements checkout.PaymentGateway on Stripe
// Checkout Sessions
type StripeCheckoutGateway struct {
	config   *StripeConfig
	sessions session.Client
	logger   *zap.Logger
}

// StripeGatewayOption configures a StripeCheckoutGateway
type StripeGatewayOption func(*StripeCheckoutGateway)

// WithBackend overrides the Stripe API backend
func WithBackend(b stripe.Backend) StripeGatewayOption {
	return func(g *StripeCheckoutGateway) {
		g.sessions.B = b
	}
}

// NewStripeCheckoutGateway creates a gateway for cfg
func NewStripeCheckoutGateway(cfg *StripeConfig, logger *zap.Logger, opts ...StripeGatewayOption) (*StripeCheckoutGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &StripeCheckoutGateway{
		config: cfg,
		sessions: session.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.SecretKey,
		},
		logger: logger.Named("stripe"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CreateSession creates a hosted checkout session in payment mode
func (g *StripeCheckoutGateway) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = g.config.Currency
	}
	countries := req.Countries
	if len(countries) == 0 {
		countries = g.config.AllowedCountries
	}

	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:               stripe.String(req.SuccessURL),
		CancelURL:                stripe.String(req.CancelURL),
		ClientReferenceID:        stripe.String(req.UserID.String()),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(countries),
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID.String())

	for _, line := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
				UnitAmount: stripe.Int64(line.UnitAmount),
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	s, err := g.sessions.New(params)
	if err != nil {
		g.logger.Error("Failed to create checkout session",
			zap.String("user_id", req.UserID.String()),
			zap.Int("lines", len(req.Lines)),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	g.logger.Info("Created checkout session",
		zap.String("session_id", s.ID),
		zap.String("user_id", req.UserID.String()))

	return toSession(s), nil
}

// RetrieveSession fetches a session by its ID
func (g *StripeCheckoutGateway) RetrieveSession(ctx context.Context, ref string) (*checkout.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.sessions.Get(ref, params)
	if err != nil {
		g.logger.Error("Failed to retrieve checkout session", zap.String("session_id", ref), zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to retrieve checkout session: %w", err)
	}
	return toSession(s), nil
}

// ExpireSession expires an open session. Stripe rejects the call once the
// session is complete or already expired.
func (g *StripeCheckoutGateway) ExpireSession(ctx context.Context, ref string) (*checkout.Session, error) {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	s, err := g.sessions.Expire(ref, params)
	if err != nil {
		g.logger.Error("Failed to expire checkout session", zap.String("session_id", ref), zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to expire checkout session: %w", err)
	}
	g.logger.Info("Expired checkout session", zap.String("session_id", ref))
	return toSession(s), nil
}

// ListLineItems returns every purchased line of a session
func (g *StripeCheckoutGateway) ListLineItems(ctx context.Context, ref string) ([]checkout.SessionLineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(ref),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var items []checkout.SessionLineItem
	iter := g.sessions.ListLineItems(params)
	for iter.Next() {
		li := iter.LineItem()
		items = append(items, checkout.SessionLineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			AmountTotal: li.AmountTotal,
		})
	}
	if err := iter.Err(); err != nil {
		g.logger.Error("Failed to list session line items", zap.String("session_id", ref), zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to list line items: %w", err)
	}
	return items, nil
}

func toSession(s *stripe.CheckoutSession) *checkout.Session {
	out := &checkout.Session{
		Ref:           s.ID,
		URL:           s.URL,
		Status:        checkout.SessionStatus(s.Status),
		PaymentStatus: checkout.PaymentStatus(s.PaymentStatus),
		UserID:        sessionOwner(s),
		Currency:      string(s.Currency),
		AmountTotal:   s.AmountTotal,
	}
	switch {
	case s.ShippingDetails != nil && s.ShippingDetails.Address != nil:
		out.Address = checkout.Address{Line1: s.ShippingDetails.Address.Line1, City: s.ShippingDetails.Address.City}
	case s.CustomerDetails != nil && s.CustomerDetails.Address != nil:
		out.Address = checkout.Address{Line1: s.CustomerDetails.Address.Line1, City: s.CustomerDetails.Address.City}
	}
	return out
}

// sessionOwner reads the user id stored by CreateSession, preferring the
// client reference over metadata
func sessionOwner(s *stripe.CheckoutSession) uuid.UUID {
	for _, raw := range []string{s.ClientReferenceID, s.Metadata["user_id"]} {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.Nil
}

// IsClientError reports whether err is a Stripe 4xx response. Those are
// request problems, not provider outages, and do not trip the breaker.
func IsClientError(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode >= http.StatusBadRequest && se.HTTPStatusCode < http.StatusInternalServerError &&
			se.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}

var _ checkout.PaymentGateway = (*StripeCheckoutGateway)(nil)
