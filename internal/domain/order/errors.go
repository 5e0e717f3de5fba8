package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrItemNotFound         = errors.New("order item not found")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrReasonRequired       = errors.New("reason is required")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnknownStatus        = errors.New("unknown status")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrOrderNumberExhausted = errors.New("could not allocate a unique order number")
)

// RejectedError is a precondition failure. Reason is safe to show to the
// user; no state was changed.
type RejectedError struct {
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	return e.Reason
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func reject(err error, reason string) error {
	return &RejectedError{Reason: reason, Err: err}
}

// InsufficientStockError fails a checkout line that asks for more than is in
// stock.
type InsufficientStockError struct {
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("sorry, %s only has %d items available", e.ProductName, e.Available)
}
