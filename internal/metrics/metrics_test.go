package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.OrderPlaced("COD")
	r.OrderPlaced("COD")
	r.OrderPlaced("ONLINE")
	r.StatusChanged("Cancelled")
	r.RefundCredited(826)
	r.RefundCredited(0)
	r.Restocked(3)
	r.Restocked(0)
	r.PaymentFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ordersPlaced.WithLabelValues("COD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ordersPlaced.WithLabelValues("ONLINE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.statusChanges.WithLabelValues("Cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.refunds))
	assert.Equal(t, 826.0, testutil.ToFloat64(r.refundAmount))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.restocked))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.paymentsFailed))
}
