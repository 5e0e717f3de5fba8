// Package metrics exports business counters for the order service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xenking/aura-scents/internal/domain/order"
)

const namespace = "aura"

var _ order.Recorder = (*Recorder)(nil)

// Recorder implements order.Recorder with Prometheus collectors.
type Recorder struct {
	ordersPlaced   *prometheus.CounterVec
	statusChanges  *prometheus.CounterVec
	refunds        prometheus.Counter
	refundAmount   prometheus.Counter
	restocked      prometheus.Counter
	paymentsFailed prometheus.Counter
}

// NewRecorder registers the collectors with reg. A nil reg uses the default
// registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		ordersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders placed, by payment method",
		}, []string{"payment_method"}),
		statusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Committed order and item status changes, by new status",
		}, []string{"status"}),
		refunds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_refunds_total",
			Help:      "Transactions that credited a refund to a wallet",
		}),
		refundAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_refund_amount_total",
			Help:      "Sum of refunded amounts credited to wallets",
		}),
		restocked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restocked_units_total",
			Help:      "Units returned to stock by cancellations and returns",
		}),
		paymentsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_failed_total",
			Help:      "Online payments that failed to start or complete",
		}),
	}
}

func (r *Recorder) OrderPlaced(paymentMethod string) {
	r.ordersPlaced.WithLabelValues(paymentMethod).Inc()
}

func (r *Recorder) StatusChanged(status string) {
	r.statusChanges.WithLabelValues(status).Inc()
}

func (r *Recorder) RefundCredited(amount float64) {
	if amount <= 0 {
		return
	}
	r.refunds.Inc()
	r.refundAmount.Add(amount)
}

func (r *Recorder) Restocked(units int) {
	if units <= 0 {
		return
	}
	r.restocked.Add(float64(units))
}

func (r *Recorder) PaymentFailed() {
	r.paymentsFailed.Inc()
}
