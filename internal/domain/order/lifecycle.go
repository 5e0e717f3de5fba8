package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UpdateOrderStatus is the staff status assignment. Any status other than
// the current one is accepted; refunding statuses also refund and restock.
func (s *Service) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.status", string(cmd.Status)),
	))
	defer span.End()

	if err := requireOrderID(cmd.OrderID); err != nil {
		return nil, err
	}
	if _, err := ParseStatus(string(cmd.Status)); err != nil {
		return nil, err
	}

	var out *Order
	err := s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		o, err := s.orders.GetForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status == cmd.Status {
			return reject(ErrInvalidTransition, fmt.Sprintf("order is already %s", cmd.Status))
		}
		if err := s.applyOrderStatus(ctx, t, o, cmd.Status, cmd.Remarks); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateItemStatus is the staff status assignment on one item. Cancelled and
// Returned are final; cancelling requires the item not yet delivered.
func (s *Service) UpdateItemStatus(ctx context.Context, cmd UpdateItemStatusCommand) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateItemStatus", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.Int64("order.item_id", cmd.ItemID),
		attribute.String("order.status", string(cmd.Status)),
	))
	defer span.End()

	if err := requireOrderID(cmd.OrderID); err != nil {
		return nil, err
	}
	if _, err := ParseItemStatus(string(cmd.Status)); err != nil {
		return nil, err
	}

	var out *Order
	err := s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		o, err := s.orders.GetForUpdate(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		it := o.Item(cmd.ItemID)
		if it == nil {
			return ErrItemNotFound
		}
		if err := checkItemTransition(it.Status, cmd.Status); err != nil {
			return err
		}

		if cmd.Status.restocks() {
			if err := s.closeItem(ctx, t, o, it, cmd.Status, cmd.Remarks, it.Subtotal(), false); err != nil {
				return err
			}
		} else {
			it.Status = cmd.Status
			if cmd.Remarks != "" {
				it.Remarks = cmd.Remarks
			}
			if err := s.orders.SaveItem(ctx, it); err != nil {
				return errors.Wrapf(err, "save item %d", it.ID)
			}
			t.emit(s.itemEvent(o, it))
		}

		if err := s.syncOrderStatus(ctx, t, o, deriveStatus(o)); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkItemTransition(from, to Status) error {
	switch {
	case from == to:
		return reject(ErrInvalidTransition, fmt.Sprintf("item is already %s", to))
	case from.restocks():
		return reject(ErrInvalidTransition, fmt.Sprintf("item is %s and cannot be updated", from))
	case to == StatusCancelled && !from.in(StatusPending, StatusProcessing, StatusShipped):
		return reject(ErrInvalidTransition, "item cannot be cancelled")
	}
	return nil
}

// CancelOrder cancels the whole order on the customer's behalf.
func (s *Service) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CancelOrder", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
	))
	defer span.End()

	reason, err := requireReason(cmd.Reason)
	if err != nil {
		return nil, err
	}

	var out *Order
	err = s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		o, err := s.ownedForUpdate(ctx, cmd.UserID, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status.in(StatusDelivered, StatusCancelled, StatusReturned, StatusReturnRequested) {
			return reject(ErrInvalidTransition, "order cannot be cancelled")
		}
		if err := s.applyOrderStatus(ctx, t, o, StatusCancelled, reason); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReturnOrder requests a return of a delivered order. The refund waits for
// staff to set the order Returned.
func (s *Service) ReturnOrder(ctx context.Context, cmd ReturnOrderCommand) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.ReturnOrder", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
	))
	defer span.End()

	reason, err := requireReason(cmd.Reason)
	if err != nil {
		return nil, err
	}

	var out *Order
	err = s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		o, err := s.ownedForUpdate(ctx, cmd.UserID, cmd.OrderID)
		if err != nil {
			return err
		}
		if o.Status != StatusDelivered {
			return reject(ErrInvalidTransition, "only delivered orders can be returned")
		}
		if err := s.applyOrderStatus(ctx, t, o, StatusReturnRequested, reason); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelItem cancels one undelivered item. The only item of an order is
// refunded the order total once; an item of a larger order is refunded its
// subtotal.
func (s *Service) CancelItem(ctx context.Context, cmd CancelItemCommand) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CancelItem", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.Int64("order.item_id", cmd.ItemID),
	))
	defer span.End()

	reason, err := requireReason(cmd.Reason)
	if err != nil {
		return nil, err
	}

	var out *Order
	err = s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		o, err := s.ownedForUpdate(ctx, cmd.UserID, cmd.OrderID)
		if err != nil {
			return err
		}
		it := o.Item(cmd.ItemID)
		if it == nil {
			return ErrItemNotFound
		}
		if it.Status.in(StatusDelivered, StatusCancelled, StatusReturned, StatusReturnRequested) {
			return reject(ErrInvalidTransition, "item cannot be cancelled")
		}

		single := len(o.Items) == 1
		amount := it.Subtotal()
		if single {
			amount = s.Totals(o).Total
		}
		if err := s.closeItem(ctx, t, o, it, StatusCancelled, reason, amount, single); err != nil {
			return err
		}
		// The only item being cancelled always moves the order, which also
		// persists the refund latch.
		if err := s.syncOrderStatus(ctx, t, o, deriveStatus(o)); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReturnItem requests a return of one delivered item. The order follows to
// Return Requested once no item is left outside the return flow.
func (s *Service) ReturnItem(ctx context.Context, cmd ReturnItemCommand) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.ReturnItem", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID),
		attribute.Int64("order.item_id", cmd.ItemID),
	))
	defer span.End()

	reason, err := requireReason(cmd.Reason)
	if err != nil {
		return nil, err
	}

	var out *Order
	err = s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		o, err := s.ownedForUpdate(ctx, cmd.UserID, cmd.OrderID)
		if err != nil {
			return err
		}
		it := o.Item(cmd.ItemID)
		if it == nil {
			return ErrItemNotFound
		}
		if it.Status != StatusDelivered {
			return reject(ErrInvalidTransition, "item must be delivered to request a return")
		}

		it.Status = StatusReturnRequested
		it.Remarks = reason
		if err := s.orders.SaveItem(ctx, it); err != nil {
			return errors.Wrapf(err, "save item %d", it.ID)
		}
		t.emit(s.itemEvent(o, it))

		status := o.Status
		if allIn(o.Items, StatusReturnRequested, StatusReturned) {
			status = StatusReturnRequested
		}
		if err := s.syncOrderStatus(ctx, t, o, status); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ownedForUpdate(ctx context.Context, userID int64, orderID string) (*Order, error) {
	if err := requireOrderID(orderID); err != nil {
		return nil, err
	}
	o, err := s.orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func allIn(items []Item, set ...Status) bool {
	for _, it := range items {
		if !it.Status.in(set...) {
			return false
		}
	}
	return true
}
