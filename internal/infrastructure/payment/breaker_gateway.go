package payment

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// BreakerGateway decorates a PaymentGateway with a per-call timeout and a
// circuit breaker. Every failure surfaces as shared.ErrGateway.
type BreakerGateway struct {
	next    checkout.PaymentGateway
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// BreakerOption configures a BreakerGateway
type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	isSuccessful  func(err error) bool
	onStateChange func(from, to string)
}

// WithSuccessPredicate marks errors that should not count against the breaker
func WithSuccessPredicate(fn func(err error) bool) BreakerOption {
	return func(o *breakerOptions) {
		o.isSuccessful = fn
	}
}

// WithStateListener is notified after every breaker state change
func WithStateListener(fn func(from, to string)) BreakerOption {
	return func(o *breakerOptions) {
		o.onStateChange = fn
	}
}

// NewBreakerGateway wraps next using the breaker settings in cfg
func NewBreakerGateway(next checkout.PaymentGateway, cfg config.PaymentConfig, logger *zap.Logger, opts ...BreakerOption) *BreakerGateway {
	o := &breakerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	g := &BreakerGateway{
		next:    next,
		timeout: cfg.Timeout,
		logger:  logger.Named("payment_breaker"),
	}

	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio
	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if o.onStateChange != nil {
				o.onStateChange(from.String(), to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			if o.isSuccessful != nil {
				return o.isSuccessful(err)
			}
			return false
		},
	}
	g.cb = gobreaker.NewCircuitBreaker(settings)
	return g
}

// State returns the breaker's current state name
func (g *BreakerGateway) State() string {
	return g.cb.State().String()
}

func (g *BreakerGateway) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		g.logger.Warn("Payment gateway call rejected by breaker", zap.String("op", op), zap.Error(err))
		return nil, shared.ErrGateway.WithMessage("payment provider temporarily unavailable").Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		g.logger.Error("Payment gateway call timed out", zap.String("op", op), zap.Duration("timeout", g.timeout))
		return nil, shared.ErrGateway.WithMessage("payment provider timed out").Wrap(err)
	default:
		g.logger.Error("Payment gateway call failed", zap.String("op", op), zap.Error(err))
		return nil, shared.ErrGateway.Wrap(err)
	}
}

// CreateSession implements checkout.PaymentGateway
func (g *BreakerGateway) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	res, err := g.call(ctx, "create_session", func(ctx context.Context) (any, error) {
		return g.next.CreateSession(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*checkout.Session), nil
}

// RetrieveSession implements checkout.PaymentGateway
func (g *BreakerGateway) RetrieveSession(ctx context.Context, ref string) (*checkout.Session, error) {
	res, err := g.call(ctx, "retrieve_session", func(ctx context.Context) (any, error) {
		return g.next.RetrieveSession(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	s, ok := res.(*checkout.Session)
	if !ok || s == nil {
		return nil, shared.ErrGateway.WithMessage("payment provider returned no session")
	}
	return s, nil
}

// ExpireSession implements checkout.PaymentGateway
func (g *BreakerGateway) ExpireSession(ctx context.Context, ref string) (*checkout.Session, error) {
	res, err := g.call(ctx, "expire_session", func(ctx context.Context) (any, error) {
		return g.next.ExpireSession(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	s, ok := res.(*checkout.Session)
	if !ok || s == nil {
		return nil, shared.ErrGateway.WithMessage("payment provider returned no session")
	}
	return s, nil
}

// ListLineItems implements checkout.PaymentGateway
func (g *BreakerGateway) ListLineItems(ctx context.Context, ref string) ([]checkout.SessionLineItem, error) {
	res, err := g.call(ctx, "list_line_items", func(ctx context.Context) (any, error) {
		return g.next.ListLineItems(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	items, _ := res.([]checkout.SessionLineItem)
	return items, nil
}

var _ checkout.PaymentGateway = (*BreakerGateway)(nil)
