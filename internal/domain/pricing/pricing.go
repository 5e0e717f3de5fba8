// Package pricing computes subtotal, tax, shipping, discount and total for a
// cart or an order snapshot.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/promotion"
)

// Policy holds the store-wide pricing constants.
type Policy struct {
	TaxRate                  decimal.Decimal
	FreeShippingThreshold    decimal.Decimal
	ShippingFee              decimal.Decimal
	DefaultDiscountThreshold decimal.Decimal
	DefaultDiscount          decimal.Decimal
	// ApplyOffersAtCheckout snapshots offer-discounted unit prices into
	// orders instead of list prices.
	ApplyOffersAtCheckout bool
}

// DefaultPolicy is 5% tax, free shipping above 1000 (else 50) and a flat 100
// off from 1500.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:                  decimal.RequireFromString("0.05"),
		FreeShippingThreshold:    decimal.NewFromInt(1000),
		ShippingFee:              decimal.NewFromInt(50),
		DefaultDiscountThreshold: decimal.NewFromInt(1500),
		DefaultDiscount:          decimal.NewFromInt(100),
	}
}

// DiscountSource tells which rule produced the order-level discount.
type DiscountSource string

const (
	DiscountNone    DiscountSource = "none"
	DiscountCoupon  DiscountSource = "coupon"
	DiscountDefault DiscountSource = "default"
)

// Line is one priced line. Offer, when set, only affects the display price.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Offer     *promotion.Offer
}

// Total is UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AppliedCoupon is a coupon discount already computed for an order.
type AppliedCoupon struct {
	Code   string
	Amount decimal.Decimal
}

// Breakdown is the full price of a cart or order.
type Breakdown struct {
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Shipping       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	DiscountSource DiscountSource
	CouponCode     string
}

// Subtotal sums unit price × quantity over lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

// Engine prices carts and orders under a Policy.
type Engine struct {
	policy Policy
	now    func() time.Time
}

// NewEngine returns an Engine for p.
func NewEngine(p Policy) *Engine {
	return &Engine{policy: p, now: time.Now}
}

// WithClock returns a copy of the engine that reads time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// Policy returns the engine policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Price prices lines with an optional coupon. The coupon is used only when
// it applies to the subtotal; otherwise the default discount rule applies.
func (e *Engine) Price(lines []Line, c *coupon.Coupon) Breakdown {
	subtotal := Subtotal(lines)
	var applied *AppliedCoupon
	if c != nil {
		now := e.now()
		if c.CheckApplicable(subtotal, now) == nil {
			applied = &AppliedCoupon{Code: c.Code, Amount: c.ApplyDiscount(subtotal, now)}
		}
	}
	return e.Breakdown(subtotal, applied)
}

// Breakdown derives tax, shipping, discount and total from subtotal.
func (e *Engine) Breakdown(subtotal decimal.Decimal, applied *AppliedCoupon) Breakdown {
	b := Breakdown{
		Subtotal:       subtotal,
		Tax:            subtotal.Mul(e.policy.TaxRate).Round(2),
		Shipping:       e.policy.ShippingFee,
		Discount:       decimal.Zero,
		DiscountSource: DiscountNone,
	}
	if subtotal.GreaterThan(e.policy.FreeShippingThreshold) {
		b.Shipping = decimal.Zero
	}

	switch {
	case applied != nil:
		b.Discount = applied.Amount
		b.DiscountSource = DiscountCoupon
		b.CouponCode = applied.Code
	case subtotal.IsPositive() && subtotal.GreaterThanOrEqual(e.policy.DefaultDiscountThreshold):
		b.Discount = e.policy.DefaultDiscount
		b.DiscountSource = DiscountDefault
	}
	b.Discount = clamp(b.Discount, decimal.Zero, subtotal)

	b.Total = subtotal.Sub(b.Discount).Add(b.Tax).Add(b.Shipping)
	if b.Total.IsNegative() {
		b.Total = decimal.Zero
	}
	return b
}

// DisplayUnitPrice is the unit price after the line's promotional offer.
func (e *Engine) DisplayUnitPrice(l Line) decimal.Decimal {
	return promotion.DiscountedPrice(l.UnitPrice, l.Offer)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
