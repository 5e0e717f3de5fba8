// Package coupon validates order-level discount codes and computes the
// discount they grant.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type is the kind of discount a coupon grants.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

var (
	ErrNotFound          = errors.New("coupon not found")
	ErrCodeTaken         = errors.New("coupon code already exists")
	ErrNotApplicable     = errors.New("coupon not applicable")
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

var hundred = decimal.NewFromInt(100)

// Coupon is a user-entered code granting a percentage or fixed discount.
type Coupon struct {
	ID                 int64
	Code               string
	Type               Type
	DiscountValue      decimal.Decimal
	MinimumOrderAmount decimal.Decimal
	// MaxDiscountAmount caps percentage discounts when valid.
	MaxDiscountAmount decimal.NullDecimal
	ValidFrom         time.Time
	ValidUntil        time.Time
	// UsageLimit is nil for unlimited coupons.
	UsageLimit *int
	UsageCount int
	IsActive   bool
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid reports whether the coupon is active, now falls within
// [ValidFrom, ValidUntil] and the usage limit is not exhausted.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.rejectReason(now) == ""
}

func (c *Coupon) rejectReason(now time.Time) string {
	switch {
	case !c.IsActive:
		return "coupon is not active"
	case now.Before(c.ValidFrom):
		return "coupon is not valid yet"
	case now.After(c.ValidUntil):
		return "coupon has expired"
	case c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit:
		return "coupon usage limit reached"
	}
	return ""
}

// NotApplicableError explains why a coupon cannot be used for an order.
type NotApplicableError struct {
	Code   string
	Reason string
}

func (e *NotApplicableError) Error() string {
	return e.Reason
}

func (e *NotApplicableError) Unwrap() error {
	return ErrNotApplicable
}

// CheckApplicable returns a *NotApplicableError when the coupon is not valid
// at now or subtotal is below the minimum order amount.
func (c *Coupon) CheckApplicable(subtotal decimal.Decimal, now time.Time) error {
	if reason := c.rejectReason(now); reason != "" {
		return &NotApplicableError{Code: c.Code, Reason: reason}
	}
	if subtotal.LessThan(c.MinimumOrderAmount) {
		return &NotApplicableError{
			Code:   c.Code,
			Reason: "minimum order amount is " + c.MinimumOrderAmount.StringFixed(2),
		}
	}
	return nil
}

// ApplyDiscount returns the discount the coupon grants on subtotal. It is zero
// when the coupon is not applicable, and never exceeds subtotal.
func (c *Coupon) ApplyDiscount(subtotal decimal.Decimal, now time.Time) decimal.Decimal {
	if !subtotal.IsPositive() || c.CheckApplicable(subtotal, now) != nil {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(hundred).Round(2)
		if c.MaxDiscountAmount.Valid && amount.GreaterThan(c.MaxDiscountAmount.Decimal) {
			amount = c.MaxDiscountAmount.Decimal
		}
	case TypeFixed:
		amount = c.DiscountValue
	default:
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal)
}

// Repository stores coupons. The ForUpdate variant locks the row for the
// rest of the surrounding transaction.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	// IncrementUsage bumps usage_count unless the limit is already reached,
	// in which case it returns ErrUsageLimitReached.
	IncrementUsage(ctx context.Context, id int64) error
}
