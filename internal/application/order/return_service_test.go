package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnService_RequestReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("writes both records", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, order.OrderStatusSucceeded)

		result, err := f.returnService.RequestReturn(ctx, testutil.CustomerActor(userID),
			RequestReturnRequest{OrderID: o.ID, Reason: "  Damaged on arrival "})
		require.NoError(t, err)
		require.True(t, result.Success)
		require.NotNil(t, result.Return)
		assert.Equal(t, "requested", result.Return.Status)
		assert.Equal(t, "refund", result.Return.Method)
		assert.Equal(t, "52.48", result.Return.RefundAmount.StringFixed(2))

		stored := f.reload(t, o.ID)
		assert.True(t, stored.Return.Requested)
		assert.Equal(t, "Damaged on arrival", stored.Return.Reason)
		assert.Equal(t, order.SummaryStatus("requested"), stored.Return.Status)
		require.NotNil(t, stored.Return.RequestedAt)

		r, err := f.returns.FindByOrderID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, stored.Return.Matches(r))
		assert.Equal(t, []string{order.EventTypeReturnRequested}, f.eventTypes())
	})

	t.Run("second request is a soft failure", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		actor := testutil.CustomerActor(userID)
		o := f.seedOrder(t, userID, order.OrderStatusSucceeded)

		_, err := f.returnService.RequestReturn(ctx, actor, RequestReturnRequest{OrderID: o.ID, Reason: "Too small"})
		require.NoError(t, err)

		result, err := f.returnService.RequestReturn(ctx, actor,
			RequestReturnRequest{OrderID: o.ID, Reason: "Changed my mind", Method: "exchange"})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "A return request already exists for this order", result.Message)
		assert.Nil(t, result.Return)

		_, total, err := f.returns.FindByUser(ctx, userID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "Too small", f.reload(t, o.ID).Return.Reason)
		assert.Len(t, f.eventTypes(), 1)
	})

	t.Run("exchange method", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, order.OrderStatusDelivered)

		result, err := f.returnService.RequestReturn(ctx, testutil.CustomerActor(userID),
			RequestReturnRequest{OrderID: o.ID, Reason: "Other colour", Method: "exchange"})
		require.NoError(t, err)
		assert.Equal(t, "exchange", result.Return.Method)
	})

	t.Run("someone else's order", func(t *testing.T) {
		f := newFixture(t)
		o := f.seedOrder(t, uuid.New(), order.OrderStatusSucceeded)

		_, err := f.returnService.RequestReturn(ctx, testutil.CustomerActor(uuid.New()),
			RequestReturnRequest{OrderID: o.ID, Reason: "Mine now"})
		requireDomainError(t, err, shared.ErrNotFound)
		assert.Equal(t, order.SummaryStatusNone, f.reload(t, o.ID).Return.Status)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		o := f.seedOrder(t, userID, order.OrderStatusSucceeded)

		_, err := f.returnService.RequestReturn(ctx, testutil.CustomerActor(userID), RequestReturnRequest{OrderID: o.ID, Reason: "  "})
		requireDomainError(t, err, shared.ErrInvalidInput)

		_, err = f.returnService.RequestReturn(ctx, testutil.CustomerActor(userID),
			RequestReturnRequest{OrderID: o.ID, Reason: "x", Method: "barter"})
		requireDomainError(t, err, shared.ErrInvalidInput)

		_, err = f.returnService.RequestReturn(ctx, nil, RequestReturnRequest{OrderID: o.ID, Reason: "x"})
		requireDomainError(t, err, shared.ErrUnauthenticated)
	})
}

func requestReturn(t *testing.T, f *fixture) (*order.Order, *ReturnResponse) {
	t.Helper()
	userID := uuid.New()
	o := f.seedOrder(t, userID, order.OrderStatusSucceeded)
	result, err := f.returnService.RequestReturn(context.Background(), testutil.CustomerActor(userID),
		RequestReturnRequest{OrderID: o.ID, Reason: "Wrong size"})
	require.NoError(t, err)
	require.True(t, result.Success)
	return o, result.Return
}

func TestReturnService_UpdateReturnStatus(t *testing.T) {
	ctx := context.Background()
	admin := testutil.AdminActor()

	t.Run("keeps both records in sync", func(t *testing.T) {
		f := newFixture(t)
		o, ret := requestReturn(t, f)
		partial := decimal.RequireFromString("20.00")

		resp, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID,
			UpdateReturnStatusRequest{Status: "approved", Notes: "Ship it back", RefundAmount: &partial})
		require.NoError(t, err)
		assert.Equal(t, "approved", resp.Status)
		assert.Equal(t, "20.00", resp.RefundAmount.StringFixed(2))
		assert.NotNil(t, resp.ResolvedAt)

		stored := f.reload(t, o.ID)
		assert.Equal(t, order.SummaryStatus("approved"), stored.Return.Status)
		assert.Equal(t, "Ship it back", stored.Return.ResponseMessage)
		assert.NotNil(t, stored.Return.ResolvedAt)
		assert.Equal(t, "Wrong size", stored.Return.Reason)

		for _, status := range []string{"received", "refunded"} {
			_, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID, UpdateReturnStatusRequest{Status: status})
			require.NoError(t, err)
		}
		stored = f.reload(t, o.ID)
		assert.Equal(t, order.SummaryStatus("refunded"), stored.Return.Status)
		r, err := f.returns.FindByID(ctx, ret.ID)
		require.NoError(t, err)
		assert.True(t, stored.Return.Matches(r))
	})

	t.Run("rejection is mirrored into the order", func(t *testing.T) {
		f := newFixture(t)
		o, ret := requestReturn(t, f)

		resp, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID,
			UpdateReturnStatusRequest{Status: "rechazado", Notes: "Outside the return window"})
		require.NoError(t, err)
		assert.Equal(t, "rejected", resp.Status)

		r, err := f.returns.FindByID(ctx, ret.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ReturnStatusRejected, r.Status)
		stored := f.reload(t, o.ID)
		assert.Equal(t, order.SummaryStatus("rejected"), stored.Return.Status)
		assert.Equal(t, "Outside the return window", stored.Return.ResponseMessage)
		assert.True(t, stored.Return.Matches(r))

		_, err = f.returnService.UpdateReturnStatus(ctx, admin, ret.ID, UpdateReturnStatusRequest{Status: "approved"})
		requireDomainError(t, err, shared.ErrInvalidState)
	})

	t.Run("notes survive an update without notes", func(t *testing.T) {
		f := newFixture(t)
		o, ret := requestReturn(t, f)

		_, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID,
			UpdateReturnStatusRequest{Status: "approved", Notes: "Label emailed"})
		require.NoError(t, err)
		_, err = f.returnService.UpdateReturnStatus(ctx, admin, ret.ID, UpdateReturnStatusRequest{Status: "received"})
		require.NoError(t, err)
		assert.Equal(t, "Label emailed", f.reload(t, o.ID).Return.ResponseMessage)

		partial := decimal.RequireFromString("12.50")
		resp, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID,
			UpdateReturnStatusRequest{Status: "received", Notes: "One item missing", RefundAmount: &partial})
		require.NoError(t, err)
		assert.Equal(t, "received", resp.Status)
		assert.Equal(t, "12.50", resp.RefundAmount.StringFixed(2))
		assert.Equal(t, "One item missing", f.reload(t, o.ID).Return.ResponseMessage)
	})

	t.Run("illegal transition leaves both untouched", func(t *testing.T) {
		f := newFixture(t)
		o, ret := requestReturn(t, f)

		_, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID, UpdateReturnStatusRequest{Status: "refunded"})
		requireDomainError(t, err, shared.ErrInvalidState)

		assert.Equal(t, order.SummaryStatus("requested"), f.reload(t, o.ID).Return.Status)
		r, err := f.returns.FindByID(ctx, ret.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ReturnStatusRequested, r.Status)
	})

	t.Run("input errors", func(t *testing.T) {
		f := newFixture(t)
		_, ret := requestReturn(t, f)
		negative := decimal.NewFromInt(-1)

		_, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID, UpdateReturnStatusRequest{Status: "lost"})
		requireDomainError(t, err, shared.ErrInvalidInput)

		_, err = f.returnService.UpdateReturnStatus(ctx, admin, ret.ID,
			UpdateReturnStatusRequest{Status: "approved", RefundAmount: &negative})
		requireDomainError(t, err, shared.ErrInvalidInput)

		_, err = f.returnService.UpdateReturnStatus(ctx, admin, uuid.New(), UpdateReturnStatusRequest{Status: "approved"})
		requireDomainError(t, err, shared.ErrNotFound)
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		f := newFixture(t)
		_, ret := requestReturn(t, f)

		_, err := f.returnService.UpdateReturnStatus(ctx, testutil.CustomerActor(ret.UserID), ret.ID,
			UpdateReturnStatusRequest{Status: "approved"})
		requireDomainError(t, err, shared.ErrForbidden)
	})
}

func TestReturnService_RemoveReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, ret := requestReturn(t, f)

	require.NoError(t, f.returnService.RemoveReturn(ctx, testutil.AdminActor(), ret.ID))

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.SummaryStatusNone, stored.Return.Status)
	assert.False(t, stored.Return.Requested)
	assert.Empty(t, stored.Return.Reason)
	_, err := f.returns.FindByID(ctx, ret.ID)
	requireDomainError(t, err, shared.ErrNotFound)
	assert.Contains(t, f.eventTypes(), order.EventTypeReturnRemoved)

	// a fresh request is accepted again
	result, err := f.returnService.RequestReturn(ctx, testutil.CustomerActor(o.UserID),
		RequestReturnRequest{OrderID: o.ID, Reason: "Second thoughts"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	err = f.returnService.RemoveReturn(ctx, testutil.AdminActor(), uuid.New())
	requireDomainError(t, err, shared.ErrNotFound)
	err = f.returnService.RemoveReturn(ctx, testutil.CustomerActor(o.UserID), result.Return.ID)
	requireDomainError(t, err, shared.ErrForbidden)
}

func TestReturnService_RemoveRefundedReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.AdminActor()
	o, ret := requestReturn(t, f)

	for _, status := range []string{"approved", "received", "refunded"} {
		_, err := f.returnService.UpdateReturnStatus(ctx, admin, ret.ID, UpdateReturnStatusRequest{Status: status})
		require.NoError(t, err)
	}
	require.Equal(t, order.SummaryStatus("refunded"), f.reload(t, o.ID).Return.Status)

	require.NoError(t, f.returnService.RemoveReturn(ctx, admin, ret.ID))

	stored := f.reload(t, o.ID)
	assert.Equal(t, order.SummaryStatusNone, stored.Return.Status)
	assert.False(t, stored.Return.Requested)
	assert.Nil(t, stored.Return.ResolvedAt)
	_, err := f.returns.FindByOrderID(ctx, o.ID)
	requireDomainError(t, err, shared.ErrNotFound)
}

func TestReturnService_Queries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, first := requestReturn(t, f)
	requestReturn(t, f)

	all, err := f.returnService.ListReturns(ctx, testutil.AdminActor(), shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	_, err = f.returnService.ListReturns(ctx, testutil.CustomerActor(first.UserID), shared.DefaultFilter())
	requireDomainError(t, err, shared.ErrForbidden)

	mine, err := f.returnService.ListUserReturns(ctx, testutil.CustomerActor(first.UserID), shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, first.ID, mine.Items[0].ID)

	got, err := f.returnService.GetReturn(ctx, testutil.CustomerActor(first.UserID), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wrong size", got.Reason)

	_, err = f.returnService.GetReturn(ctx, testutil.CustomerActor(uuid.New()), first.ID)
	requireDomainError(t, err, shared.ErrNotFound)
}
