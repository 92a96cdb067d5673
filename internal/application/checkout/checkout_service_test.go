package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateSession(ctx context.Context, req checkout.SessionRequest) (*checkout.Session, error) {
	args := m.Called(ctx, req)
	if s := args.Get(0); s != nil {
		return s.(*checkout.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) RetrieveSession(ctx context.Context, ref string) (*checkout.Session, error) {
	args := m.Called(ctx, ref)
	if s := args.Get(0); s != nil {
		return s.(*checkout.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) ExpireSession(ctx context.Context, ref string) (*checkout.Session, error) {
	args := m.Called(ctx, ref)
	if s := args.Get(0); s != nil {
		return s.(*checkout.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) ListLineItems(ctx context.Context, ref string) ([]checkout.SessionLineItem, error) {
	args := m.Called(ctx, ref)
	if items := args.Get(0); items != nil {
		return items.([]checkout.SessionLineItem), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*checkout.Variant, error) {
	args := m.Called(ctx, productID, variantID)
	if v := args.Get(0); v != nil {
		return v.(*checkout.Variant), args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingMetrics struct {
	mu       sync.Mutex
	sessions int
	orders   map[string]int
	cents    int64
}

func (r *recordingMetrics) SessionCreated(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions++
}

func (r *recordingMetrics) OrderRecorded(_ context.Context, status string, amountCents int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orders == nil {
		r.orders = map[string]int{}
	}
	r.orders[status]++
	r.cents += amountCents
}

type fixture struct {
	service     *CheckoutService
	gateway     *mockGateway
	catalog     *mockCatalog
	carts       *cache.InMemoryCartStore
	idempotency *cache.InMemoryIdempotencyStore
	orders      *persistence.GormOrderRepository
	events      *testutil.MockEventHandler
	metrics     *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	db := testutil.NewSQLiteDB(t)

	f := &fixture{
		gateway:     new(mockGateway),
		catalog:     new(mockCatalog),
		carts:       cache.NewInMemoryCartStore(),
		idempotency: cache.NewInMemoryIdempotencyStore(),
		orders:      persistence.NewGormOrderRepository(db),
		events:      testutil.NewMockEventHandler(order.EventTypeOrderCreated, order.EventTypeOrderCancelled),
		metrics:     &recordingMetrics{},
	}
	t.Cleanup(func() { _ = f.idempotency.Close() })

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(f.events)

	f.service = NewCheckoutService(f.carts, f.catalog, f.gateway, f.orders, f.idempotency, Config{
		Currency:   "usd",
		SuccessURL: "http://shop.test/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "http://shop.test/checkout/cancel?session_id={CHECKOUT_SESSION_ID}",
		Countries:  []string{"US", "ES"},
	}, log)
	f.service.SetEventPublisher(bus)
	f.service.SetMetrics(f.metrics)
	return f
}

func purchase(ref string, owner uuid.UUID, status checkout.SessionStatus, payment checkout.PaymentStatus) *checkout.Session {
	return &checkout.Session{
		Ref:           ref,
		Status:        status,
		PaymentStatus: payment,
		UserID:        owner,
		Currency:      "usd",
		AmountTotal:   5248,
		Address:       checkout.Address{Line1: "1 Main St", City: "Springfield"},
	}
}

func (f *fixture) expectLineItems(ref string) {
	f.gateway.On("ListLineItems", mock.Anything, ref).Return([]checkout.SessionLineItem{
		{Description: "Linen shirt - M", Quantity: 2, AmountTotal: 3998},
		{Description: "Canvas tote", Quantity: 1, AmountTotal: 1250},
	}, nil)
}

func (f *fixture) expectPaidSession(ref string, owner uuid.UUID) {
	f.gateway.On("RetrieveSession", mock.Anything, ref).
		Return(purchase(ref, owner, checkout.SessionStatusComplete, checkout.PaymentStatusPaid), nil)
	f.expectLineItems(ref)
}

func (f *fixture) expectOpenSession(ref string, owner uuid.UUID) {
	f.gateway.On("RetrieveSession", mock.Anything, ref).
		Return(purchase(ref, owner, checkout.SessionStatusOpen, checkout.PaymentStatusUnpaid), nil)
	f.expectLineItems(ref)
}

func fillCart(t *testing.T, f *fixture, userID uuid.UUID) {
	t.Helper()
	c := cart.New(userID)
	require.NoError(t, c.AddLine(cart.Line{ProductID: uuid.New(), VariantID: uuid.New(), Quantity: 1}))
	require.NoError(t, f.carts.Save(context.Background(), c))
}

func variant(productID, variantID uuid.UUID, price string) *checkout.Variant {
	return &checkout.Variant{
		ProductID:   productID,
		VariantID:   variantID,
		ProductName: "Linen shirt",
		VariantName: "M",
		Price:       decimal.RequireFromString(price),
		Active:      true,
	}
}

func TestCheckoutService_CreateCheckout(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	actor := testutil.CustomerActor(userID)
	productID, variantID := uuid.New(), uuid.New()

	t.Run("uses catalog prices for submitted lines", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.On("FindVariant", mock.Anything, productID, variantID).Return(variant(productID, variantID, "19.995"), nil)
		f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(req checkout.SessionRequest) bool {
			return req.UserID == userID &&
				req.Currency == "usd" &&
				len(req.Lines) == 1 &&
				req.Lines[0].Name == "Linen shirt - M" &&
				req.Lines[0].UnitAmount == 2000 &&
				req.Lines[0].Quantity == 3 &&
				req.SuccessURL == "http://shop.test/checkout/success?session_id={CHECKOUT_SESSION_ID}" &&
				len(req.Countries) == 2
		})).Return(&checkout.Session{Ref: "cs_1", URL: "https://pay.test/cs_1"}, nil)

		resp, err := f.service.CreateCheckout(ctx, actor, CreateCheckoutRequest{
			Lines: []CheckoutLineInput{{ProductID: productID, VariantID: variantID, Quantity: 3}},
		})
		require.NoError(t, err)
		assert.Equal(t, "https://pay.test/cs_1", resp.URL)
		assert.Equal(t, "cs_1", resp.SessionID)
		assert.Equal(t, 1, f.metrics.sessions)

		_, err = f.orders.FindBySessionRef(ctx, "cs_1")
		assert.ErrorIs(t, err, shared.ErrNotFound, "no order before payment completes")
		f.gateway.AssertExpectations(t)
	})

	t.Run("falls back to the stored cart", func(t *testing.T) {
		f := newFixture(t)
		c := cart.New(userID)
		require.NoError(t, c.AddLine(cart.Line{ProductID: productID, VariantID: variantID, Quantity: 2}))
		require.NoError(t, f.carts.Save(ctx, c))

		f.catalog.On("FindVariant", mock.Anything, productID, variantID).Return(variant(productID, variantID, "10"), nil)
		f.gateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(req checkout.SessionRequest) bool {
			return len(req.Lines) == 1 && req.Lines[0].Quantity == 2 && req.Lines[0].UnitAmount == 1000
		})).Return(&checkout.Session{Ref: "cs_2", URL: "https://pay.test/cs_2"}, nil)

		resp, err := f.service.CreateCheckout(ctx, actor, CreateCheckoutRequest{})
		require.NoError(t, err)
		assert.Equal(t, "cs_2", resp.SessionID)
	})

	t.Run("repeated calls create separate sessions", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.On("FindVariant", mock.Anything, productID, variantID).Return(variant(productID, variantID, "10"), nil)
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).Return(&checkout.Session{Ref: "cs_a"}, nil).Once()
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).Return(&checkout.Session{Ref: "cs_b"}, nil).Once()

		req := CreateCheckoutRequest{Lines: []CheckoutLineInput{{ProductID: productID, VariantID: variantID, Quantity: 1}}}
		first, err := f.service.CreateCheckout(ctx, actor, req)
		require.NoError(t, err)
		second, err := f.service.CreateCheckout(ctx, actor, req)
		require.NoError(t, err)
		assert.NotEqual(t, first.SessionID, second.SessionID)
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateCheckout(ctx, actor, CreateCheckoutRequest{})
		assert.ErrorIs(t, err, shared.ErrInvalidCart)
		f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	})

	t.Run("unknown variant", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.On("FindVariant", mock.Anything, productID, variantID).Return(nil, shared.ErrNotFound)

		_, err := f.service.CreateCheckout(ctx, actor, CreateCheckoutRequest{
			Lines: []CheckoutLineInput{{ProductID: productID, VariantID: variantID, Quantity: 1}},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidCart)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateCheckout(ctx, actor, CreateCheckoutRequest{
			Lines: []CheckoutLineInput{{ProductID: productID, VariantID: variantID, Quantity: 0}},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidCart)
	})

	t.Run("gateway failure", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.On("FindVariant", mock.Anything, productID, variantID).Return(variant(productID, variantID, "10"), nil)
		f.gateway.On("CreateSession", mock.Anything, mock.Anything).Return(nil, errors.New("stripe: connection reset"))

		_, err := f.service.CreateCheckout(ctx, actor, CreateCheckoutRequest{
			Lines: []CheckoutLineInput{{ProductID: productID, VariantID: variantID, Quantity: 1}},
		})
		assert.ErrorIs(t, err, shared.ErrGateway)
		assert.Zero(t, f.metrics.sessions)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CreateCheckout(ctx, nil, CreateCheckoutRequest{})
		assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	})
}

func TestCheckoutService_CompleteCheckout(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	actor := testutil.CustomerActor(userID)

	t.Run("records the order and clears the cart", func(t *testing.T) {
		f := newFixture(t)
		fillCart(t, f, userID)
		f.expectPaidSession("cs_paid", userID)

		resp, err := f.service.CompleteCheckout(ctx, actor, "cs_paid")
		require.NoError(t, err)
		assert.Equal(t, "succeeded", resp.Status)
		assert.Equal(t, userID, resp.UserID)
		assert.Equal(t, "52.48", resp.Amount.StringFixed(2))
		assert.Equal(t, "1 Main St, Springfield", resp.ShippingAddress)
		require.Len(t, resp.LineItems, 2)
		assert.Equal(t, "Linen shirt - M", resp.LineItems[0].Name)
		assert.Equal(t, 2, resp.LineItems[0].Quantity)
		assert.Equal(t, "19.99", resp.LineItems[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "39.98", resp.LineItems[0].Total.StringFixed(2))
		assert.Equal(t, "12.50", resp.LineItems[1].UnitPrice.StringFixed(2))
		assert.Equal(t, "processing", resp.Tracking.Status)
		assert.Equal(t, order.SummaryStatusNone, resp.Return.Status)

		stored, err := f.carts.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, stored.IsEmpty())

		assert.Equal(t, 1, f.events.HandledCount())
		assert.Equal(t, order.EventTypeOrderCreated, f.events.Handled()[0].EventType())
		assert.Equal(t, map[string]int{"succeeded": 1}, f.metrics.orders)
		assert.Equal(t, int64(5248), f.metrics.cents)
		f.gateway.AssertNotCalled(t, "ExpireSession", mock.Anything, mock.Anything)
	})

	t.Run("is idempotent per session", func(t *testing.T) {
		f := newFixture(t)
		f.expectPaidSession("cs_twice", userID)

		first, err := f.service.CompleteCheckout(ctx, actor, "cs_twice")
		require.NoError(t, err)

		fillCart(t, f, userID)

		second, err := f.service.CompleteCheckout(ctx, actor, "cs_twice")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		f.gateway.AssertNumberOfCalls(t, "RetrieveSession", 1)
		assert.Equal(t, 1, f.events.HandledCount(), "no second audit trail")
		stored, err := f.carts.Get(ctx, userID)
		require.NoError(t, err)
		assert.False(t, stored.IsEmpty(), "cart not cleared a second time")
	})

	t.Run("unpaid session records nothing", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_open").
			Return(purchase("cs_open", userID, checkout.SessionStatusOpen, checkout.PaymentStatusUnpaid), nil).Once()
		f.gateway.On("RetrieveSession", mock.Anything, "cs_open").
			Return(purchase("cs_open", userID, checkout.SessionStatusComplete, checkout.PaymentStatusUnpaid), nil).Once()
		f.expectPaidSession("cs_open", userID)

		_, err := f.service.CompleteCheckout(ctx, actor, "cs_open")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		_, err = f.service.CompleteCheckout(ctx, actor, "cs_open")
		assert.ErrorIs(t, err, shared.ErrInvalidState, "complete but payment still pending")

		_, err = f.orders.FindBySessionRef(ctx, "cs_open")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.gateway.AssertNotCalled(t, "ListLineItems", mock.Anything, mock.Anything)
		assert.Zero(t, f.events.HandledCount())

		resp, err := f.service.CompleteCheckout(ctx, actor, "cs_open")
		require.NoError(t, err, "claim is not held by the rejected attempts")
		assert.Equal(t, "succeeded", resp.Status)
	})

	t.Run("expired session", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_expired").
			Return(purchase("cs_expired", userID, checkout.SessionStatusExpired, checkout.PaymentStatusUnpaid), nil)

		_, err := f.service.CompleteCheckout(ctx, actor, "cs_expired")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("missing amount and address", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_bare").Return(&checkout.Session{
			Ref:           "cs_bare",
			Status:        checkout.SessionStatusComplete,
			PaymentStatus: checkout.PaymentStatusNoPaymentRequired,
			UserID:        userID,
		}, nil)
		f.gateway.On("ListLineItems", mock.Anything, "cs_bare").Return([]checkout.SessionLineItem{}, nil)

		resp, err := f.service.CompleteCheckout(ctx, actor, "cs_bare")
		require.NoError(t, err)
		assert.True(t, resp.Amount.IsZero())
		assert.Empty(t, resp.ShippingAddress)
		assert.Equal(t, "usd", resp.Currency)
	})

	t.Run("gateway failure writes nothing and releases the claim", func(t *testing.T) {
		f := newFixture(t)
		paid := purchase("cs_flaky", userID, checkout.SessionStatusComplete, checkout.PaymentStatusPaid)
		paid.AmountTotal = 1000
		f.gateway.On("RetrieveSession", mock.Anything, "cs_flaky").Return(paid, nil)
		f.gateway.On("ListLineItems", mock.Anything, "cs_flaky").
			Return(nil, shared.ErrGateway.WithMessage("payment provider timed out")).Once()
		f.gateway.On("ListLineItems", mock.Anything, "cs_flaky").
			Return([]checkout.SessionLineItem{{Description: "Mug", Quantity: 1, AmountTotal: 1000}}, nil).Once()

		_, err := f.service.CompleteCheckout(ctx, actor, "cs_flaky")
		assert.ErrorIs(t, err, shared.ErrGateway)
		_, err = f.orders.FindBySessionRef(ctx, "cs_flaky")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		resp, err := f.service.CompleteCheckout(ctx, actor, "cs_flaky")
		require.NoError(t, err)
		assert.Equal(t, "10.00", resp.Amount.StringFixed(2))
	})

	t.Run("retrieve failure", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_down").
			Return(nil, shared.ErrGateway.WithMessage("payment provider temporarily unavailable"))

		_, err := f.service.CompleteCheckout(ctx, actor, "cs_down")
		assert.ErrorIs(t, err, shared.ErrGateway)
		claimed, err := f.idempotency.MarkProcessed(ctx, "checkout:cs_down", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed, "no claim taken before the session is verified")
	})

	t.Run("claim held elsewhere", func(t *testing.T) {
		f := newFixture(t)
		f.expectPaidSession("cs_busy", userID)
		claimed, err := f.idempotency.MarkProcessed(ctx, "checkout:cs_busy", time.Minute)
		require.NoError(t, err)
		require.True(t, claimed)

		_, err = f.service.CompleteCheckout(ctx, actor, "cs_busy")
		assert.ErrorIs(t, err, shared.ErrCheckoutInProgress)
		f.gateway.AssertNotCalled(t, "ListLineItems", mock.Anything, mock.Anything)
	})

	t.Run("order recorded for another user", func(t *testing.T) {
		f := newFixture(t)
		f.expectPaidSession("cs_owned", userID)
		_, err := f.service.CompleteCheckout(ctx, actor, "cs_owned")
		require.NoError(t, err)

		_, err = f.service.CompleteCheckout(ctx, testutil.CustomerActor(uuid.New()), "cs_owned")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("session created for another user", func(t *testing.T) {
		f := newFixture(t)
		f.expectPaidSession("cs_theirs", userID)
		other := testutil.CustomerActor(uuid.New())

		_, err := f.service.CompleteCheckout(ctx, other, "cs_theirs")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = f.orders.FindBySessionRef(ctx, "cs_theirs")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.gateway.AssertNotCalled(t, "ListLineItems", mock.Anything, mock.Anything)

		resp, err := f.service.CompleteCheckout(ctx, actor, "cs_theirs")
		require.NoError(t, err, "payer is not locked out")
		assert.Equal(t, userID, resp.UserID)
	})

	t.Run("session without customer reference", func(t *testing.T) {
		f := newFixture(t)
		f.expectPaidSession("cs_anon", uuid.Nil)

		_, err := f.service.CompleteCheckout(ctx, actor, "cs_anon")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = f.service.CompleteCheckout(ctx, testutil.AdminActor(), "cs_anon")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("admin records the order for the session owner", func(t *testing.T) {
		f := newFixture(t)
		fillCart(t, f, userID)
		f.expectPaidSession("cs_support", userID)

		resp, err := f.service.CompleteCheckout(ctx, testutil.AdminActor(), "cs_support")
		require.NoError(t, err)
		assert.Equal(t, userID, resp.UserID)

		stored, err := f.carts.Get(ctx, userID)
		require.NoError(t, err)
		assert.True(t, stored.IsEmpty(), "owner's cart cleared")
	})

	t.Run("input errors", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CompleteCheckout(ctx, actor, "  ")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = f.service.CompleteCheckout(ctx, nil, "cs_1")
		assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	})
}

func TestCheckoutService_ConcurrentCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.expectPaidSession("cs_race", userID)

	const callers = 8
	var wg sync.WaitGroup
	ids := make(chan uuid.UUID, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.service.CompleteCheckout(ctx, testutil.CustomerActor(userID), "cs_race")
			if err != nil {
				errs <- err
				return
			}
			ids <- resp.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, shared.ErrCheckoutInProgress)
	}
	seen := map[uuid.UUID]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.LessOrEqual(t, len(seen), 1)

	orders, total, err := f.orders.FindByUser(ctx, userID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "cs_race", orders[0].SessionRef)
	assert.Equal(t, 1, f.events.HandledCount())
}

// hiddenOnceRepository pretends the session has no order on the first
// lookup, as when another instance commits between the check and the insert
type hiddenOnceRepository struct {
	order.OrderRepository
	mu     sync.Mutex
	hidden bool
}

func (r *hiddenOnceRepository) FindBySessionRef(ctx context.Context, ref string) (*order.Order, error) {
	r.mu.Lock()
	hide := !r.hidden
	r.hidden = true
	r.mu.Unlock()
	if hide {
		return nil, shared.ErrNotFound
	}
	return r.OrderRepository.FindBySessionRef(ctx, ref)
}

func TestCheckoutService_UniqueSessionBackstop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	actor := testutil.CustomerActor(userID)

	f.expectPaidSession("cs_dupe", userID)
	winner, err := f.service.CompleteCheckout(ctx, actor, "cs_dupe")
	require.NoError(t, err)
	require.NoError(t, f.idempotency.Release(ctx, "checkout:cs_dupe"))

	racing := NewCheckoutService(f.carts, f.catalog, f.gateway, &hiddenOnceRepository{OrderRepository: f.orders},
		f.idempotency, Config{}, zaptest.NewLogger(t))

	resp, err := racing.CompleteCheckout(ctx, actor, "cs_dupe")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, resp.ID)

	_, total, err := f.orders.FindByUser(ctx, userID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCheckoutService_CancelCheckout(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	actor := testutil.CustomerActor(userID)

	t.Run("expires the open session and keeps the cart", func(t *testing.T) {
		f := newFixture(t)
		fillCart(t, f, userID)
		f.expectOpenSession("cs_abandoned", userID)
		f.gateway.On("ExpireSession", mock.Anything, "cs_abandoned").
			Return(purchase("cs_abandoned", userID, checkout.SessionStatusExpired, checkout.PaymentStatusUnpaid), nil).Once()

		resp, err := f.service.CancelCheckout(ctx, actor, "cs_abandoned")
		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		assert.Equal(t, userID, resp.UserID)

		stored, err := f.carts.Get(ctx, userID)
		require.NoError(t, err)
		assert.False(t, stored.IsEmpty(), "cart kept on cancel")
		require.Equal(t, 1, f.events.HandledCount())
		assert.Equal(t, order.EventTypeOrderCancelled, f.events.Handled()[0].EventType())
		assert.Equal(t, map[string]int{"cancelled": 1}, f.metrics.orders)

		again, err := f.service.CancelCheckout(ctx, actor, "cs_abandoned")
		require.NoError(t, err)
		assert.Equal(t, resp.ID, again.ID)
		f.gateway.AssertNumberOfCalls(t, "RetrieveSession", 1)
		f.gateway.AssertNumberOfCalls(t, "ExpireSession", 1)
	})

	t.Run("paid session cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		fillCart(t, f, userID)
		f.expectPaidSession("cs_paid", userID)

		_, err := f.service.CancelCheckout(ctx, actor, "cs_paid")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		_, err = f.orders.FindBySessionRef(ctx, "cs_paid")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.gateway.AssertNotCalled(t, "ExpireSession", mock.Anything, mock.Anything)

		resp, err := f.service.CompleteCheckout(ctx, actor, "cs_paid")
		require.NoError(t, err)
		assert.Equal(t, "succeeded", resp.Status)
		assert.Equal(t, "52.48", resp.Amount.StringFixed(2))
	})

	t.Run("expired session needs no provider call", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.On("RetrieveSession", mock.Anything, "cs_lapsed").
			Return(purchase("cs_lapsed", userID, checkout.SessionStatusExpired, checkout.PaymentStatusUnpaid), nil)
		f.expectLineItems("cs_lapsed")

		resp, err := f.service.CancelCheckout(ctx, actor, "cs_lapsed")
		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		f.gateway.AssertNotCalled(t, "ExpireSession", mock.Anything, mock.Anything)
	})

	t.Run("expire failure records nothing", func(t *testing.T) {
		f := newFixture(t)
		f.expectOpenSession("cs_racing", userID)
		f.gateway.On("ExpireSession", mock.Anything, "cs_racing").
			Return(nil, shared.ErrGateway.WithMessage("Only Checkout Sessions with a status of open can be expired"))

		_, err := f.service.CancelCheckout(ctx, actor, "cs_racing")
		assert.ErrorIs(t, err, shared.ErrGateway)
		_, err = f.orders.FindBySessionRef(ctx, "cs_racing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("another user's session", func(t *testing.T) {
		f := newFixture(t)
		f.expectOpenSession("cs_theirs", userID)

		_, err := f.service.CancelCheckout(ctx, testutil.CustomerActor(uuid.New()), "cs_theirs")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.gateway.AssertNotCalled(t, "ExpireSession", mock.Anything, mock.Anything)
	})
}

func TestToLineItems(t *testing.T) {
	items := toLineItems([]checkout.SessionLineItem{
		{Description: "Sock pack", Quantity: 3, AmountTotal: 1000},
		{Description: "Gift card", Quantity: 1, AmountTotal: 2500},
		{Description: "Dropped", Quantity: 0, AmountTotal: 100},
	})

	require.Len(t, items, 2)
	assert.Equal(t, "3.3333", items[0].UnitPrice.StringFixed(4))
	assert.Equal(t, "10.00", items[0].Total().StringFixed(2))

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	assert.Equal(t, "35.00", sum.StringFixed(2), "line totals add up to the charged amount")
}
