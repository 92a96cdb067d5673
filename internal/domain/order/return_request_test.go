package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_RequestReturn(t *testing.T) {
	o := newTestOrder(t, OrderStatusDelivered)
	now := time.Now()

	require.NoError(t, o.RequestReturn(" wrong size ", now))
	assert.True(t, o.Return.Requested)
	assert.Equal(t, "wrong size", o.Return.Reason)
	assert.Equal(t, SummaryStatus(ReturnStatusRequested), o.Return.Status)
	assert.Equal(t, &now, o.Return.RequestedAt)

	err := o.RequestReturn("again", now)
	assert.ErrorIs(t, err, shared.ErrDuplicateReturn)
	assert.Equal(t, "wrong size", o.Return.Reason)
}

func TestNewReturn(t *testing.T) {
	o := newTestOrder(t, OrderStatusDelivered)

	r, err := NewReturn(o, "damaged", "", nil)
	require.NoError(t, err)
	assert.Equal(t, o.ID, r.OrderID)
	assert.Equal(t, o.UserID, r.UserID)
	assert.Equal(t, ReturnMethodRefund, r.Method)
	assert.True(t, o.Amount.Equal(r.RefundAmount))
	assert.Equal(t, ReturnStatusRequested, r.Status)
	require.Len(t, r.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeReturnRequested, r.GetDomainEvents()[0].EventType())

	_, err = NewReturn(o, "   ", ReturnMethodRefund, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewReturn(nil, "x", ReturnMethodRefund, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestReturn_ChangeStatus(t *testing.T) {
	o := newTestOrder(t, OrderStatusDelivered)
	r, err := NewReturn(o, "damaged", ReturnMethodExchange, nil)
	require.NoError(t, err)
	r.ClearDomainEvents()

	require.NoError(t, r.ChangeStatus(ReturnStatusApproved, "ship it back", nil, testAdmin))
	assert.Equal(t, ReturnStatusApproved, r.Status)
	assert.Equal(t, "ship it back", r.Notes)
	assert.NotNil(t, r.ResolvedAt)

	partial := decimal.NewFromInt(10)
	require.NoError(t, r.ChangeStatus(ReturnStatusReceived, "", &partial, testAdmin))
	assert.True(t, r.RefundAmount.Equal(partial))

	negative := decimal.NewFromInt(-1)
	assert.ErrorIs(t, r.ChangeStatus(ReturnStatusRefunded, "", &negative, testAdmin), shared.ErrInvalidInput)

	require.NoError(t, r.ChangeStatus(ReturnStatusRefunded, "done", nil, testAdmin))
	assert.ErrorIs(t, r.ChangeStatus(ReturnStatusApproved, "", nil, testAdmin), shared.ErrInvalidState)
	assert.ErrorIs(t, r.ChangeStatus("bogus", "", nil, testAdmin), shared.ErrInvalidInput)

	events := r.GetDomainEvents()
	require.Len(t, events, 3)
	last := events[2].(*ReturnStatusChangedEvent)
	assert.Equal(t, ReturnStatusReceived, last.FromStatus)
	assert.Equal(t, ReturnStatusRefunded, last.ToStatus)
}

func TestReturn_ChangeStatus_KeepsNotes(t *testing.T) {
	o := newTestOrder(t, OrderStatusDelivered)
	r, err := NewReturn(o, "damaged", ReturnMethodRefund, nil)
	require.NoError(t, err)
	r.ClearDomainEvents()

	require.NoError(t, r.ChangeStatus(ReturnStatusApproved, "label emailed", nil, testAdmin))
	resolvedAt := r.ResolvedAt

	require.NoError(t, r.ChangeStatus(ReturnStatusReceived, "   ", nil, testAdmin))
	assert.Equal(t, "label emailed", r.Notes)

	t.Run("same status updates notes and amount only", func(t *testing.T) {
		partial := decimal.NewFromInt(5)
		require.NoError(t, r.ChangeStatus(ReturnStatusReceived, "one item missing", &partial, testAdmin))
		assert.Equal(t, ReturnStatusReceived, r.Status)
		assert.Equal(t, "one item missing", r.Notes)
		assert.True(t, r.RefundAmount.Equal(partial))
		assert.Len(t, r.GetDomainEvents(), 2)

		require.NoError(t, r.ChangeStatus(ReturnStatusReceived, "", nil, testAdmin))
		assert.Equal(t, "one item missing", r.Notes)
		assert.True(t, r.RefundAmount.Equal(partial))
	})

	t.Run("terminal status accepts a notes update", func(t *testing.T) {
		require.NoError(t, r.ChangeStatus(ReturnStatusRefunded, "", nil, testAdmin))
		refundedAt := r.ResolvedAt
		require.NoError(t, r.ChangeStatus(ReturnStatusRefunded, "refund sent", nil, testAdmin))
		assert.Equal(t, "refund sent", r.Notes)
		assert.Same(t, refundedAt, r.ResolvedAt)
		assert.NotSame(t, resolvedAt, r.ResolvedAt)
		assert.ErrorIs(t, r.ChangeStatus(ReturnStatusReceived, "", nil, testAdmin), shared.ErrInvalidState)
	})
}

func TestParseReturnStatus(t *testing.T) {
	s, err := ParseReturnStatus("Aprobado")
	require.NoError(t, err)
	assert.Equal(t, ReturnStatusApproved, s)

	_, err = ParseReturnStatus("maybe")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	m, err := ParseReturnMethod("")
	require.NoError(t, err)
	assert.Equal(t, ReturnMethodRefund, m)
	_, err = ParseReturnMethod("store credit")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestOrder_SyncAndClearReturn(t *testing.T) {
	o := newTestOrder(t, OrderStatusDelivered)
	require.NoError(t, o.RequestReturn("damaged", time.Now()))
	r, err := NewReturn(o, "damaged", ReturnMethodRefund, nil)
	require.NoError(t, err)
	require.NoError(t, r.ChangeStatus(ReturnStatusRejected, "outside window", nil, testAdmin))

	assert.False(t, o.Return.Matches(r))
	o.SyncReturn(r)
	assert.True(t, o.Return.Matches(r))
	assert.Equal(t, "outside window", o.Return.ResponseMessage)
	assert.Equal(t, r.ResolvedAt, o.Return.ResolvedAt)

	o.ClearReturn()
	assert.False(t, o.Return.IsActive())
	assert.Empty(t, o.Return.Reason)
	require.NoError(t, o.RequestReturn("second try", time.Now()))
}
