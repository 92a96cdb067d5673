package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/tests/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	orders   *persistence.GormOrderRepository
	returns  *persistence.GormReturnRepository
	scope    *persistence.GormTransactionScope
	bus      *event.InMemoryEventBus
	recorded *testutil.MockEventHandler

	orderService    *OrderService
	trackingService *TrackingService
	returnService   *ReturnService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	db := testutil.NewSQLiteDB(t)

	f := &fixture{
		db:      db,
		orders:  persistence.NewGormOrderRepository(db),
		returns: persistence.NewGormReturnRepository(db),
		scope:   persistence.NewGormTransactionScope(db),
		bus:     event.NewInMemoryEventBus(log),
		recorded: testutil.NewMockEventHandler(
			order.EventTypeOrderStatusChanged,
			order.EventTypeOrderDeleted,
			order.EventTypeTrackingUpdated,
			order.EventTypeReturnRequested,
			order.EventTypeReturnStatusChanged,
			order.EventTypeReturnRemoved,
		),
	}
	f.bus.Subscribe(f.recorded)

	f.orderService = NewOrderService(f.orders, f.scope, log)
	f.orderService.SetEventPublisher(f.bus)
	f.trackingService = NewTrackingService(f.orders, f.scope, log)
	f.trackingService.SetEventPublisher(f.bus)
	f.returnService = NewReturnService(f.orders, f.returns, f.scope, log)
	f.returnService.SetEventPublisher(f.bus)
	return f
}

func (f *fixture) seedOrder(t *testing.T, userID uuid.UUID, status order.OrderStatus) *order.Order {
	t.Helper()
	o, err := order.NewOrder(order.NewOrderInput{
		UserID:     userID,
		SessionRef: "cs_test_" + uuid.NewString(),
		Status:     status,
		LineItems: []order.LineItem{
			{Name: "Linen shirt - M", Quantity: 2, UnitPrice: decimal.RequireFromString("19.99")},
			{Name: "Canvas tote", Quantity: 1, UnitPrice: decimal.RequireFromString("12.50")},
		},
		Amount:          decimal.RequireFromString("52.48"),
		Currency:        "usd",
		ShippingAddress: "1 Main St, Springfield",
	}, nil)
	require.NoError(t, err)
	o.ClearDomainEvents()
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *order.Order {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) eventTypes() []string {
	handled := f.recorded.Handled()
	types := make([]string, len(handled))
	for i, ev := range handled {
		types[i] = ev.EventType()
	}
	return types
}

func requireDomainError(t *testing.T, err error, target *shared.DomainError) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target, "got %v", err)
}

func floatPtr(v float64) *float64 {
	return &v
}
