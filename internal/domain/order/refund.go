package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// orderRefundable reports whether cancelling or returning o credits the
// wallet. Only captured payments are refunded, and the latch allows one
// order refund.
func orderRefundable(o *Order) bool {
	if o.RefundProcessed || o.Status == StatusFailed {
		return false
	}
	return o.IsPaid
}

// itemRefundable reports whether cancelling or returning a single item
// credits the wallet.
func itemRefundable(o *Order) bool {
	if o.Status == StatusFailed {
		return false
	}
	return o.PaymentMethod != PaymentCOD || o.IsPaid
}

// refund credits up to want to the order owner. The credit is capped so the
// sum of refunds for an order never exceeds its total.
func (s *Service) refund(ctx context.Context, t *tx, o *Order, want decimal.Decimal, description string) (decimal.Decimal, error) {
	refunded, err := s.wallet.Refunded(ctx, o.ID)
	if err != nil {
		return decimal.Zero, err
	}
	room := s.Totals(o).Total.Sub(refunded)
	amount := decimal.Min(want, room)
	if !amount.IsPositive() {
		s.lg.Info("Refund skipped, order fully refunded",
			zap.String("order_id", o.OrderID),
			zap.String("refunded", refunded.StringFixed(2)),
		)
		return decimal.Zero, nil
	}

	orderID := o.ID
	if _, err := s.wallet.Credit(ctx, o.UserID, &orderID, amount, description); err != nil {
		return decimal.Zero, errors.Wrapf(err, "credit refund for order %s", o.OrderID)
	}
	t.refunded = t.refunded.Add(amount)
	return amount, nil
}

// restock returns an item's quantity to the counter it was reserved from.
// Items whose product was deleted have nothing to restock.
func (s *Service) restock(ctx context.Context, t *tx, it *Item) error {
	if it.ProductID == nil {
		s.lg.Warn("Restock skipped, product deleted",
			zap.Int64("item_id", it.ID),
		)
		return nil
	}
	if err := s.inventory.Restock(ctx, *it.ProductID, it.VariantID, it.Quantity); err != nil {
		return errors.Wrapf(err, "restock product %d", *it.ProductID)
	}
	t.restocked += it.Quantity
	return nil
}

// applyOrderStatus moves the order to status and cascades to its items.
// Cancelled and Returned refund a paid order once and restock every item
// that was not already restocked.
func (s *Service) applyOrderStatus(ctx context.Context, t *tx, o *Order, status Status, remarks string) error {
	from := o.Status
	if status.restocks() {
		refundable := orderRefundable(o)
		for i := range o.Items {
			it := &o.Items[i]
			if !it.Status.restocks() {
				if err := s.restock(ctx, t, it); err != nil {
					return err
				}
			}
			it.Status = status
			if err := s.orders.SaveItem(ctx, it); err != nil {
				return errors.Wrapf(err, "save item %d", it.ID)
			}
		}
		if refundable {
			desc := fmt.Sprintf("Refund for %s order %s", lowerStatus(status), o.OrderID)
			if _, err := s.refund(ctx, t, o, s.Totals(o).Total, desc); err != nil {
				return err
			}
			o.RefundProcessed = true
		}
	} else {
		for i := range o.Items {
			it := &o.Items[i]
			if !cascades(it.Status, status) {
				continue
			}
			it.Status = status
			if err := s.orders.SaveItem(ctx, it); err != nil {
				return errors.Wrapf(err, "save item %d", it.ID)
			}
		}
	}

	if status == StatusDelivered && o.PaymentMethod == PaymentCOD {
		o.IsPaid = true
	}
	o.Status = status
	if remarks != "" {
		o.Remarks = remarks
	}
	if err := s.orders.Save(ctx, o); err != nil {
		return errors.Wrapf(err, "save order %s", o.OrderID)
	}

	s.lg.Info("Order status changed",
		zap.String("order_id", o.OrderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	t.emit(s.orderEvent(o))
	return nil
}

// cascades reports whether a non-refunding order status is copied onto an
// item currently in from.
func cascades(from, to Status) bool {
	switch {
	case from.restocks():
		return false
	case to == StatusFailed:
		return false
	case to == StatusReturnRequested:
		return from == StatusDelivered
	default:
		return true
	}
}

// closeItem cancels or returns one item: it restocks the item and refunds
// amount when the order qualifies. setLatch marks the order refunded.
func (s *Service) closeItem(ctx context.Context, t *tx, o *Order, it *Item, status Status, remarks string, amount decimal.Decimal, setLatch bool) error {
	if err := s.restock(ctx, t, it); err != nil {
		return err
	}
	it.Status = status
	if remarks != "" {
		it.Remarks = remarks
	}
	if err := s.orders.SaveItem(ctx, it); err != nil {
		return errors.Wrapf(err, "save item %d", it.ID)
	}

	if itemRefundable(o) && !(setLatch && o.RefundProcessed) {
		desc := fmt.Sprintf("Refund for %s item %s in order %s", lowerStatus(status), it.ProductName, o.OrderID)
		if _, err := s.refund(ctx, t, o, amount, desc); err != nil {
			return err
		}
		if setLatch {
			o.RefundProcessed = true
		}
	}
	t.emit(s.itemEvent(o, it))
	return nil
}

// deriveStatus recomputes the order status from its items after an item
// transition. It returns the status unchanged when no rule applies.
func deriveStatus(o *Order) Status {
	allCancelled, allClosed, anyReturned := true, true, false
	for _, it := range o.Items {
		switch it.Status {
		case StatusReturnRequested:
			return StatusReturnRequested
		case StatusCancelled:
		case StatusReturned:
			allCancelled = false
			anyReturned = true
		default:
			allCancelled, allClosed = false, false
		}
	}
	switch {
	case len(o.Items) == 0:
		return o.Status
	case allCancelled:
		return StatusCancelled
	case allClosed && anyReturned:
		return StatusReturned
	default:
		return o.Status
	}
}

// syncOrderStatus saves a changed order status derived from item statuses.
// Item transitions already did their own refunds and restocks.
func (s *Service) syncOrderStatus(ctx context.Context, t *tx, o *Order, status Status) error {
	if status == o.Status {
		return nil
	}
	o.Status = status
	if err := s.orders.Save(ctx, o); err != nil {
		return errors.Wrapf(err, "save order %s", o.OrderID)
	}
	t.emit(s.orderEvent(o))
	return nil
}

func lowerStatus(s Status) string {
	switch s {
	case StatusCancelled:
		return "cancelled"
	case StatusReturned:
		return "returned"
	default:
		return string(s)
	}
}
