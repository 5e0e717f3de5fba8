// Package order implements checkout and the order/item lifecycle with its
// stock and wallet side effects.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/aura-scents/internal/domain/pricing"
)

// Status is an order or item status.
type Status string

const (
	StatusPending         Status = "Pending"
	StatusProcessing      Status = "Processing"
	StatusShipped         Status = "Shipped"
	StatusDelivered       Status = "Delivered"
	StatusCancelled       Status = "Cancelled"
	StatusReturnRequested Status = "Return Requested"
	StatusReturned        Status = "Returned"
	// StatusFailed is order-level only.
	StatusFailed Status = "Failed"
)

var orderStatuses = []Status{
	StatusPending, StatusProcessing, StatusShipped, StatusDelivered,
	StatusCancelled, StatusReturnRequested, StatusReturned, StatusFailed,
}

// ParseStatus validates an order-level status.
func ParseStatus(s string) (Status, error) {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrUnknownStatus
}

// ParseItemStatus validates an item-level status.
func ParseItemStatus(s string) (Status, error) {
	st, err := ParseStatus(s)
	if err != nil || st == StatusFailed {
		return "", ErrUnknownStatus
	}
	return st, nil
}

// restocks reports whether entering s puts the goods back into stock.
func (s Status) restocks() bool {
	return s == StatusCancelled || s == StatusReturned
}

func (s Status) in(set ...Status) bool {
	for _, st := range set {
		if s == st {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

// ParsePaymentMethod validates a payment method; empty means COD.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case "", PaymentCOD:
		return PaymentCOD, nil
	case PaymentOnline:
		return PaymentOnline, nil
	default:
		return "", ErrUnknownPaymentMethod
	}
}

// Order is a placed order with its items.
type Order struct {
	ID        int64
	OrderID   string
	UserID    int64
	AddressID *int64
	CreatedAt time.Time

	PaymentMethod  PaymentMethod
	IsPaid         bool
	GatewayOrderID string
	Status         Status

	CouponID   *int64
	CouponCode string
	// CouponDiscount is the coupon amount fixed at checkout.
	CouponDiscount decimal.NullDecimal

	RefundProcessed bool
	Remarks         string

	Items []Item
}

// Item is one order line with its own status.
type Item struct {
	ID          int64
	OrderID     int64
	ProductID   *int64
	VariantID   *int64
	ProductName string
	Quantity    int
	// Price is the unit price snapshot taken at checkout.
	Price   decimal.Decimal
	Status  Status
	Remarks string
}

// Subtotal is Price × Quantity.
func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Lines converts the items to pricing lines.
func (o *Order) Lines() []pricing.Line {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	return lines
}

// AppliedCoupon returns the coupon discount fixed at checkout, if any.
func (o *Order) AppliedCoupon() *pricing.AppliedCoupon {
	if o.CouponCode == "" || !o.CouponDiscount.Valid {
		return nil
	}
	return &pricing.AppliedCoupon{Code: o.CouponCode, Amount: o.CouponDiscount.Decimal}
}

// Item returns a pointer to the item with id, or nil.
func (o *Order) Item(id int64) *Item {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// Repository persists orders. ForUpdate variants lock the order row for the
// surrounding transaction.
type Repository interface {
	// Create inserts the order and its items, filling in ids. It returns
	// false without error when the order number is already taken.
	Create(ctx context.Context, o *Order) (bool, error)
	Get(ctx context.Context, orderID string) (*Order, error)
	GetForUpdate(ctx context.Context, orderID string) (*Order, error)
	GetByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*Order, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Order, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]Order, error)
	// Save writes the order-level columns.
	Save(ctx context.Context, o *Order) error
	SaveItem(ctx context.Context, it *Item) error
}

// Inventory mutates stock counters. A variant id selects the variant
// counter, otherwise the product counter is used.
type Inventory interface {
	// Reserve decrements stock only if enough is available and reports
	// whether it did.
	Reserve(ctx context.Context, productID int64, variantID *int64, quantity int) (bool, error)
	Restock(ctx context.Context, productID int64, variantID *int64, quantity int) error
	Available(ctx context.Context, productID int64, variantID *int64) (int, error)
}

// UnitOfWork runs fn in one database transaction; the transaction travels in
// the context passed to fn.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
