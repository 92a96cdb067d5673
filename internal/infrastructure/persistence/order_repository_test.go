package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormOrderRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newOrderFixture(t, uuid.New())
	require.NoError(t, repo.Create(ctx, o))

	found, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.UserID, found.UserID)
	assert.Equal(t, o.SessionRef, found.SessionRef)
	assert.Equal(t, order.OrderStatusSucceeded, found.Status)
	assert.True(t, o.Amount.Equal(found.Amount))
	require.Len(t, found.LineItems, 2)
	assert.Equal(t, "Linen shirt - M", found.LineItems[0].Name)
	assert.Equal(t, "Canvas tote", found.LineItems[1].Name)
	assert.True(t, decimal.RequireFromString("19.99").Equal(found.LineItems[0].UnitPrice))
	assert.Equal(t, order.TrackingStatusProcessing, found.Tracking.Status)
	assert.Empty(t, found.Tracking.History)
	assert.Nil(t, found.Tracking.CurrentLocation)
	assert.Equal(t, order.SummaryStatusNone, found.Return.Status)
	assert.Equal(t, 1, found.Version)

	bySession, err := repo.FindBySessionRef(ctx, o.SessionRef)
	require.NoError(t, err)
	assert.Equal(t, o.ID, bySession.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.FindBySessionRef(ctx, "cs_unknown")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOrderRepository_DuplicateSessionRef(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	first := newOrderFixture(t, uuid.New())
	require.NoError(t, repo.Create(ctx, first))

	second := newOrderFixture(t, first.UserID)
	second.SessionRef = first.SessionRef
	err := repo.Create(ctx, second)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, total, err := repo.FindByUser(ctx, first.UserID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestGormOrderRepository_SaveWithLock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newOrderFixture(t, uuid.New())
	require.NoError(t, repo.Create(ctx, o))

	stale, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)

	_, err = o.UpdateStatus(order.OrderStatusShipped, nil)
	require.NoError(t, err)
	require.NoError(t, o.SetDestination(order.GeoPoint{Lat: 40.4, Lng: -3.7}, "Calle Mayor 1, Madrid"))
	require.NoError(t, repo.SaveWithLock(ctx, o))
	assert.Equal(t, 2, o.Version)

	reloaded, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderStatusShipped, reloaded.Status)
	require.NotNil(t, reloaded.Tracking.Destination)
	assert.Equal(t, "Calle Mayor 1, Madrid", reloaded.Tracking.Destination.Address)
	assert.Equal(t, 2, reloaded.Version)

	_, err = stale.UpdateStatus(order.OrderStatusCancelled, nil)
	require.NoError(t, err)
	err = repo.SaveWithLock(ctx, stale)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, stale.Version, "version restored after conflict")

	ghost := newOrderFixture(t, uuid.New())
	assert.ErrorIs(t, repo.SaveWithLock(ctx, ghost), shared.ErrNotFound)
}

func TestGormOrderRepository_AppendTrackingPoint(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newOrderFixture(t, uuid.New())
	require.NoError(t, repo.Create(ctx, o))

	base := time.Now().UTC()
	var last int64
	for i := 0; i < 3; i++ {
		p, err := repo.AppendTrackingPoint(ctx, o.ID, order.TrackingPoint{
			GeoPoint:   order.GeoPoint{Lat: 40 + float64(i), Lng: -3},
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.Greater(t, p.Sequence, last)
		last = p.Sequence
	}

	found, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, found.Tracking.History, 3)
	for i, p := range found.Tracking.History {
		assert.InDelta(t, 40+float64(i), p.Lat, 1e-9)
	}
	assert.Less(t, found.Tracking.History[0].Sequence, found.Tracking.History[2].Sequence)
}

func TestGormOrderRepository_FindByUserPaginates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newOrderFixture(t, userID)))
	}
	require.NoError(t, repo.Create(ctx, newOrderFixture(t, uuid.New())))

	page, total, err := repo.FindByUser(ctx, userID, shared.Filter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)
	for _, o := range page {
		assert.Equal(t, userID, o.UserID)
		assert.Len(t, o.LineItems, 2)
	}

	all, total, err := repo.FindAll(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
	assert.Len(t, all, 6)
}

func TestGormOrderRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	o := newOrderFixture(t, uuid.New())
	require.NoError(t, repo.Create(ctx, o))
	_, err := repo.AppendTrackingPoint(ctx, o.ID, order.TrackingPoint{GeoPoint: order.GeoPoint{Lat: 1, Lng: 1}, RecordedAt: time.Now()})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, o.ID))

	_, err = repo.FindByID(ctx, o.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	var orphans int64
	require.NoError(t, db.Table("order_tracking_points").Where("order_id = ?", o.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)
	require.NoError(t, db.Table("order_line_items").Where("order_id = ?", o.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)

	assert.ErrorIs(t, repo.Delete(ctx, o.ID), shared.ErrNotFound)
}

func TestGormOrderRepository_SaveWithLockConflictSQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormOrderRepository(db.DB)

	o := newOrderFixture(t, uuid.New())

	mock.ExpectExec(`UPDATE "orders" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.SaveWithLock(context.Background(), o)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, o.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
