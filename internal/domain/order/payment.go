package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PaymentRequest asks the gateway to collect Amount for an order.
type PaymentRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
}

// PaymentIntent is the gateway side of a pending payment.
type PaymentIntent struct {
	GatewayOrderID string
	ClientSecret   string
}

// Gateway creates remote payments for online orders.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentIntent, error)
}

// PaymentResult is a verified gateway callback.
type PaymentResult struct {
	GatewayOrderID string
	Succeeded      bool
	Reason         string
}

// RecordPayment applies a verified gateway callback. Success marks the order
// paid and moves it to Processing; failure marks an unpaid order Failed.
// Neither outcome touches stock or the wallet. Repeated callbacks are no-ops.
func (s *Service) RecordPayment(ctx context.Context, res PaymentResult) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.RecordPayment", trace.WithAttributes(
		attribute.String("payment.gateway_order_id", res.GatewayOrderID),
		attribute.Bool("payment.succeeded", res.Succeeded),
	))
	defer span.End()

	if res.GatewayOrderID == "" {
		return nil, errors.Wrap(ErrNotFound, "empty gateway order id")
	}

	var (
		out    *Order
		failed bool
	)
	err := s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		failed = false
		o, err := s.orders.GetByGatewayOrderIDForUpdate(ctx, res.GatewayOrderID)
		if err != nil {
			return err
		}
		out = o
		if o.IsPaid {
			return nil
		}

		if !res.Succeeded {
			if o.Status != StatusPending {
				return nil
			}
			remarks := res.Reason
			if remarks == "" {
				remarks = "payment failed"
			}
			failed = true
			return s.applyOrderStatus(ctx, t, o, StatusFailed, remarks)
		}

		o.IsPaid = true
		if o.Status.in(StatusPending, StatusFailed) {
			return s.applyOrderStatus(ctx, t, o, StatusProcessing, "")
		}
		if err := s.orders.Save(ctx, o); err != nil {
			return errors.Wrapf(err, "save order %s", o.OrderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failed {
		s.metrics.PaymentFailed()
	}
	return out, nil
}

// markFailed fails an order whose payment could not be started.
func (s *Service) markFailed(ctx context.Context, orderID, remarks string) error {
	err := s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		return s.applyOrderStatus(ctx, t, o, StatusFailed, remarks)
	})
	if err != nil {
		return err
	}
	s.metrics.PaymentFailed()
	return nil
}

func (s *Service) attachPayment(ctx context.Context, o *Order, gatewayOrderID string) error {
	return s.runInTx(ctx, func(ctx context.Context, _ *tx) error {
		locked, err := s.orders.GetForUpdate(ctx, o.OrderID)
		if err != nil {
			return err
		}
		locked.GatewayOrderID = gatewayOrderID
		if err := s.orders.Save(ctx, locked); err != nil {
			return errors.Wrapf(err, "save order %s", o.OrderID)
		}
		o.GatewayOrderID = gatewayOrderID
		s.lg.Debug("Payment attached",
			zap.String("order_id", o.OrderID),
			zap.String("gateway_order_id", gatewayOrderID),
		)
		return nil
	})
}
