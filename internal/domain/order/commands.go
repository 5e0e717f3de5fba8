package order

import (
	"strings"

	"github.com/go-faster/errors"
)

// CheckoutCommand places an order from the user's cart.
type CheckoutCommand struct {
	UserID        int64
	AddressID     *int64
	PaymentMethod PaymentMethod
	CouponCode    string
}

// UpdateOrderStatusCommand is a staff status assignment on a whole order.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  Status
	Remarks string
}

// UpdateItemStatusCommand is a staff status assignment on one item.
type UpdateItemStatusCommand struct {
	OrderID string
	ItemID  int64
	Status  Status
	Remarks string
}

// CancelOrderCommand is a customer request to cancel a whole order.
type CancelOrderCommand struct {
	UserID  int64
	OrderID string
	Reason  string
}

// ReturnOrderCommand is a customer request to return a delivered order.
type ReturnOrderCommand struct {
	UserID  int64
	OrderID string
	Reason  string
}

// CancelItemCommand is a customer request to cancel one item.
type CancelItemCommand struct {
	UserID  int64
	OrderID string
	ItemID  int64
	Reason  string
}

// ReturnItemCommand is a customer request to return one delivered item.
type ReturnItemCommand struct {
	UserID  int64
	OrderID string
	ItemID  int64
	Reason  string
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", reject(ErrReasonRequired, "reason is required")
	}
	return reason, nil
}

func requireOrderID(orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return errors.Wrap(ErrNotFound, "empty order id")
	}
	return nil
}
