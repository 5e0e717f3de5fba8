package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOnlineOrder() Order {
	o := twoItemOrder(StatusPending)
	o.IsPaid = false
	o.GatewayOrderID = "pi_777"
	return o
}

func TestRecordPayment_Succeeded(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, pendingOnlineOrder())
	ctx := context.Background()

	got, err := f.svc.RecordPayment(ctx, PaymentResult{GatewayOrderID: "pi_777", Succeeded: true})
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, StatusProcessing, got.Status)

	stored := f.db.order(t, o.OrderID)
	assert.True(t, stored.IsPaid)
	assert.Equal(t, StatusProcessing, stored.Items[0].Status)
	assert.Equal(t, StatusProcessing, stored.Items[1].Status)
	assert.Equal(t, []Status{StatusProcessing}, f.events.statuses())

	// Gateways deliver callbacks at least once.
	_, err = f.svc.RecordPayment(ctx, PaymentResult{GatewayOrderID: "pi_777", Succeeded: true})
	require.NoError(t, err)
	assert.Len(t, f.events.events, 1)
}

func TestRecordPayment_Failed(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, pendingOnlineOrder())
	f.db.stock[keyOf(1, nil)] = 4

	got, err := f.svc.RecordPayment(context.Background(), PaymentResult{GatewayOrderID: "pi_777", Reason: "card declined"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "card declined", got.Remarks)

	stored := f.db.order(t, o.OrderID)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, StatusPending, stored.Items[0].Status)
	assert.Equal(t, 4, f.db.stock[keyOf(1, nil)])
	assert.Empty(t, f.db.txs)
	assert.Equal(t, 1, f.metrics.paymentFailed)
}

func TestRecordPayment_SuccessAfterFailure(t *testing.T) {
	f := newFixture(t)
	o := pendingOnlineOrder()
	o.Status = StatusFailed
	o.Items[0].Status = StatusPending
	o.Items[1].Status = StatusPending
	f.seedOrder(t, o)

	got, err := f.svc.RecordPayment(context.Background(), PaymentResult{GatewayOrderID: "pi_777", Succeeded: true})
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestRecordPayment_FailureIgnoredOncePaid(t *testing.T) {
	f := newFixture(t)
	o := pendingOnlineOrder()
	o.IsPaid = true
	o.Status = StatusProcessing
	f.seedOrder(t, o)

	got, err := f.svc.RecordPayment(context.Background(), PaymentResult{GatewayOrderID: "pi_777"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Zero(t, f.metrics.paymentFailed)
}

func TestRecordPayment_UnknownIntent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordPayment(context.Background(), PaymentResult{GatewayOrderID: "pi_missing", Succeeded: true})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.RecordPayment(context.Background(), PaymentResult{})
	require.ErrorIs(t, err, ErrNotFound)
}
