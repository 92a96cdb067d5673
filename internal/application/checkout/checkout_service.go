// Package checkout turns carts into hosted payment sessions and completed
// sessions into orders.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	orderapp "github.com/storefront/backend/internal/application/order"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const claimKeyPrefix = "checkout:"

// Config holds checkout settings resolved from application config
type Config struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	Countries  []string
	ClaimTTL   time.Duration
}

// CheckoutService orchestrates the cart to order flow
type CheckoutService struct {
	carts          cart.Store
	catalog        checkout.Catalog
	gateway        checkout.PaymentGateway
	orders         order.OrderRepository
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
	metrics        Metrics
	config         Config
	logger         *zap.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(
	carts cart.Store,
	catalog checkout.Catalog,
	gateway checkout.PaymentGateway,
	orders order.OrderRepository,
	idempotency shared.IdempotencyStore,
	cfg Config,
	l *zap.Logger,
) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &CheckoutService{
		carts:       carts,
		catalog:     catalog,
		gateway:     gateway,
		orders:      orders,
		idempotency: idempotency,
		metrics:     noopMetrics{},
		config:      cfg,
		logger:      l.Named("checkout_service"),
	}
}

// SetEventPublisher sets the publisher used after an order is recorded
func (s *CheckoutService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the checkout metrics recorder
func (s *CheckoutService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// CreateCheckout creates a hosted payment session for the submitted lines
// or, when none are submitted, for the user's stored cart. Prices always
// come from the catalog. No order is written.
func (s *CheckoutService) CreateCheckout(ctx context.Context, actor *shared.Actor, req CreateCheckoutRequest) (*CreateCheckoutResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}

	lines, err := s.resolveLines(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, shared.ErrInvalidCart.WithMessage("Cart is empty")
	}

	priceLines := make([]checkout.PriceLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, shared.ErrInvalidCart.WithMessage("quantity must be at least 1")
		}
		v, err := s.catalog.FindVariant(ctx, line.ProductID, line.VariantID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.ErrInvalidCart.WithMessage(
					fmt.Sprintf("variant %s of product %s is not available", line.VariantID, line.ProductID))
			}
			return nil, asDomainError(err, shared.ErrPersistence)
		}
		priceLines = append(priceLines, checkout.PriceLine{
			Name:       v.DisplayName(),
			UnitAmount: v.UnitAmountCents(),
			Quantity:   int64(line.Quantity),
		})
	}

	session, err := s.gateway.CreateSession(ctx, checkout.SessionRequest{
		UserID:     actor.UserID,
		Currency:   s.config.Currency,
		Lines:      priceLines,
		SuccessURL: s.config.SuccessURL,
		CancelURL:  s.config.CancelURL,
		Countries:  s.config.Countries,
	})
	if err != nil {
		return nil, asDomainError(err, shared.ErrGateway)
	}

	s.metrics.SessionCreated(ctx)
	logger.Enrich(ctx, s.logger).Info("Checkout session created",
		zap.String("session_id", session.Ref),
		zap.Int("lines", len(priceLines)))

	return &CreateCheckoutResponse{URL: session.URL, SessionID: session.Ref}, nil
}

func (s *CheckoutService) resolveLines(ctx context.Context, actor *shared.Actor, req CreateCheckoutRequest) ([]cart.Line, error) {
	if len(req.Lines) > 0 {
		lines := make([]cart.Line, len(req.Lines))
		for i, in := range req.Lines {
			lines[i] = cart.Line{ProductID: in.ProductID, VariantID: in.VariantID, Quantity: in.Quantity}
		}
		return lines, nil
	}
	c, err := s.carts.Get(ctx, actor.UserID)
	if err != nil {
		return nil, asDomainError(err, shared.ErrPersistence)
	}
	return c.Lines, nil
}

// CompleteCheckout records a succeeded order for a paid session and empties
// the owner's cart. Repeated calls for the same session return the order
// recorded by the first one.
func (s *CheckoutService) CompleteCheckout(ctx context.Context, actor *shared.Actor, sessionRef string) (*orderapp.OrderResponse, error) {
	return s.finalize(ctx, actor, sessionRef, order.OrderStatusSucceeded)
}

// CancelCheckout records a cancelled order for an abandoned session and
// expires the session at the provider so it can no longer be paid. The cart
// is kept. A session that was already paid cannot be cancelled.
func (s *CheckoutService) CancelCheckout(ctx context.Context, actor *shared.Actor, sessionRef string) (*orderapp.OrderResponse, error) {
	return s.finalize(ctx, actor, sessionRef, order.OrderStatusCancelled)
}

func (s *CheckoutService) finalize(ctx context.Context, actor *shared.Actor, sessionRef string, status order.OrderStatus) (*orderapp.OrderResponse, error) {
	if err := shared.RequireUser(actor); err != nil {
		return nil, err
	}
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return nil, shared.ErrInvalidInput.WithMessage("session_id is required")
	}
	log := logger.Enrich(ctx, s.logger).With(zap.String("session_id", sessionRef))

	if existing, err := s.findExisting(ctx, actor, sessionRef); err != nil || existing != nil {
		return existing, err
	}

	session, err := s.gateway.RetrieveSession(ctx, sessionRef)
	if err != nil {
		return nil, asDomainError(err, shared.ErrGateway)
	}
	if !actor.IsAdmin() && !session.BelongsTo(actor.UserID) {
		log.Warn("Checkout session belongs to another user", zap.String("user_id", actor.UserID.String()))
		return nil, shared.ErrNotFound.WithMessage("Checkout session not found")
	}
	if session.UserID == uuid.Nil {
		return nil, shared.ErrInvalidState.WithMessage("checkout session has no customer reference")
	}
	if err := checkSessionState(session, status); err != nil {
		return nil, err
	}

	key := claimKeyPrefix + sessionRef
	claimed, err := s.idempotency.MarkProcessed(ctx, key, s.config.ClaimTTL)
	owned := err == nil && claimed
	if err != nil {
		log.Warn("Idempotency store unavailable, relying on unique session index", zap.Error(err))
	} else if !claimed {
		existing, err := s.findExisting(ctx, actor, sessionRef)
		if err != nil || existing != nil {
			return existing, err
		}
		return nil, shared.ErrCheckoutInProgress
	}

	done := false
	defer func() {
		if owned && !done {
			if err := s.idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("Failed to release checkout claim", zap.Error(err))
			}
		}
	}()

	if status == order.OrderStatusCancelled && session.Status == checkout.SessionStatusOpen {
		if _, err := s.gateway.ExpireSession(ctx, sessionRef); err != nil {
			return nil, asDomainError(err, shared.ErrGateway)
		}
	}

	lineItems, err := s.gateway.ListLineItems(ctx, sessionRef)
	if err != nil {
		return nil, asDomainError(err, shared.ErrGateway)
	}

	currency := session.Currency
	if currency == "" {
		currency = s.config.Currency
	}
	o, err := order.NewOrder(order.NewOrderInput{
		UserID:          session.UserID,
		SessionRef:      sessionRef,
		Status:          status,
		LineItems:       toLineItems(lineItems),
		Amount:          session.Amount(),
		Currency:        currency,
		ShippingAddress: session.Address.Format(),
	}, actor)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			done = true
			winner, findErr := s.findExisting(ctx, actor, sessionRef)
			if findErr != nil {
				return nil, findErr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, asDomainError(err, shared.ErrPersistence)
	}
	done = true

	log.Info("Order recorded from checkout session",
		zap.String("order_id", o.ID.String()),
		zap.String("status", string(o.Status)),
		zap.String("amount", o.Amount.StringFixed(2)))

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, o.PullDomainEvents()...); err != nil {
			log.Warn("Failed to publish order events", zap.Error(err))
		}
	}

	if status == order.OrderStatusSucceeded {
		if err := s.carts.Clear(ctx, o.UserID); err != nil {
			log.Warn("Failed to clear cart after checkout", zap.Error(err))
		}
	}

	s.metrics.OrderRecorded(ctx, string(o.Status), o.AmountCents())

	resp := orderapp.ToOrderResponse(o)
	return &resp, nil
}

// checkSessionState rejects recording status for a session in the wrong
// provider state: only paid sessions succeed and paid sessions never cancel
func checkSessionState(session *checkout.Session, status order.OrderStatus) error {
	switch status {
	case order.OrderStatusSucceeded:
		if !session.IsPaid() {
			return shared.ErrInvalidState.WithMessage(fmt.Sprintf(
				"checkout session is %s with payment %s", session.Status, session.PaymentStatus))
		}
	case order.OrderStatusCancelled:
		if session.Status == checkout.SessionStatusComplete {
			return shared.ErrInvalidState.WithMessage("checkout session is already complete")
		}
	}
	return nil
}

// findExisting returns the order already recorded for sessionRef, or nil
func (s *CheckoutService) findExisting(ctx context.Context, actor *shared.Actor, sessionRef string) (*orderapp.OrderResponse, error) {
	o, err := s.orders.FindBySessionRef(ctx, sessionRef)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, asDomainError(err, shared.ErrPersistence)
	}
	if !actor.IsAdmin() && !actor.Owns(o.UserID) {
		return nil, shared.ErrNotFound.WithMessage("Order not found")
	}
	resp := orderapp.ToOrderResponse(o)
	return &resp, nil
}

// toLineItems keeps the provider's line totals and derives unit prices
// from them
func toLineItems(items []checkout.SessionLineItem) []order.LineItem {
	out := make([]order.LineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}
		total := decimal.New(item.AmountTotal, -2)
		out = append(out, order.LineItem{
			Name:      item.Description,
			Quantity:  int(item.Quantity),
			UnitPrice: total.Div(decimal.NewFromInt(item.Quantity)).Round(4),
			Amount:    total,
		})
	}
	return out
}

// asDomainError keeps domain errors and classifies everything else as fallback
func asDomainError(err error, fallback *shared.DomainError) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return fallback.Wrap(err)
}
