package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func newOrderFixture(t *testing.T, userID uuid.UUID) *order.Order {
	t.Helper()
	o, err := order.NewOrder(order.NewOrderInput{
		UserID:     userID,
		SessionRef: "cs_test_" + uuid.NewString(),
		Status:     order.OrderStatusSucceeded,
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
	return o
}
