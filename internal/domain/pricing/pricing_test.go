package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/promotion"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestEngine() *Engine {
	e := NewEngine(DefaultPolicy())
	e.now = func() time.Time { return fixedNow }
	return e
}

func line(price string, qty int) Line {
	return Line{UnitPrice: d(price), Quantity: qty}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestPrice(t *testing.T) {
	save10 := &coupon.Coupon{
		Code:              "SAVE10",
		Type:              coupon.TypePercentage,
		DiscountValue:     d("10"),
		MaxDiscountAmount: decimal.NewNullDecimal(d("50")),
		ValidFrom:         fixedNow.Add(-time.Hour),
		ValidUntil:        fixedNow.Add(time.Hour),
		IsActive:          true,
	}
	expired := *save10
	expired.ValidUntil = fixedNow.Add(-time.Minute)

	minOrder := *save10
	minOrder.MinimumOrderAmount = d("5000")

	tests := []struct {
		name     string
		lines    []Line
		coupon   *coupon.Coupon
		subtotal string
		tax      string
		shipping string
		discount string
		total    string
		source   DiscountSource
	}{
		{
			name:     "default discount at threshold",
			lines:    []Line{line("500", 3)},
			subtotal: "1500", tax: "75", shipping: "0", discount: "100", total: "1475",
			source: DiscountDefault,
		},
		{
			name:     "just below default threshold",
			lines:    []Line{line("1499.99", 1)},
			subtotal: "1499.99", tax: "75", shipping: "0", discount: "0", total: "1574.99",
			source: DiscountNone,
		},
		{
			name:     "shipping charged at exactly 1000",
			lines:    []Line{line("250", 4)},
			subtotal: "1000", tax: "50", shipping: "50", discount: "0", total: "1100",
			source: DiscountNone,
		},
		{
			name:     "coupon capped by max discount",
			lines:    []Line{line("1000", 1)},
			coupon:   save10,
			subtotal: "1000", tax: "50", shipping: "50", discount: "50", total: "1050",
			source: DiscountCoupon,
		},
		{
			name:     "coupon takes precedence over default",
			lines:    []Line{line("1000", 2)},
			coupon:   save10,
			subtotal: "2000", tax: "100", shipping: "0", discount: "50", total: "2050",
			source: DiscountCoupon,
		},
		{
			name:     "expired coupon falls back to default",
			lines:    []Line{line("1000", 2)},
			coupon:   &expired,
			subtotal: "2000", tax: "100", shipping: "0", discount: "100", total: "2000",
			source: DiscountDefault,
		},
		{
			name:     "coupon below minimum falls back to default",
			lines:    []Line{line("1000", 2)},
			coupon:   &minOrder,
			subtotal: "2000", tax: "100", shipping: "0", discount: "100", total: "2000",
			source: DiscountDefault,
		},
		{
			name:     "mixed lines with cents",
			lines:    []Line{line("19.99", 3), line("0.05", 1)},
			subtotal: "60.02", tax: "3", shipping: "50", discount: "0", total: "113.02",
			source: DiscountNone,
		},
		{
			name:     "empty",
			subtotal: "0", tax: "0", shipping: "50", discount: "0", total: "50",
			source: DiscountNone,
		},
	}

	e := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := e.Price(tt.lines, tt.coupon)
			assertDec(t, tt.subtotal, b.Subtotal, "subtotal")
			assertDec(t, tt.tax, b.Tax, "tax")
			assertDec(t, tt.shipping, b.Shipping, "shipping")
			assertDec(t, tt.discount, b.Discount, "discount")
			assertDec(t, tt.total, b.Total, "total")
			assert.Equal(t, tt.source, b.DiscountSource)

			assert.True(t, b.Total.Equal(b.Subtotal.Sub(b.Discount).Add(b.Tax).Add(b.Shipping)))
			assert.True(t, b.Discount.LessThanOrEqual(b.Subtotal))
		})
	}
}

func TestBreakdown_DiscountNeverExceedsSubtotal(t *testing.T) {
	p := DefaultPolicy()
	p.DefaultDiscountThreshold = d("10")
	p.DefaultDiscount = d("500")
	e := NewEngine(p)

	b := e.Breakdown(d("20"), nil)
	assertDec(t, "20", b.Discount, "discount")
	assertDec(t, "51", b.Total, "total")

	b = e.Breakdown(d("20"), &AppliedCoupon{Code: "BIG", Amount: d("999")})
	assertDec(t, "20", b.Discount, "discount")
	assert.Equal(t, "BIG", b.CouponCode)
}

func TestDisplayUnitPrice(t *testing.T) {
	e := newTestEngine()
	offer := &promotion.Offer{DiscountPercentage: d("20")}

	assertDec(t, "400", e.DisplayUnitPrice(Line{UnitPrice: d("500"), Quantity: 1, Offer: offer}), "display")
	assertDec(t, "500", e.DisplayUnitPrice(line("500", 1)), "display")
}

func TestSubtotal_IgnoresOffers(t *testing.T) {
	offer := &promotion.Offer{DiscountPercentage: d("50")}
	lines := []Line{{UnitPrice: d("100"), Quantity: 2, Offer: offer}}
	assertDec(t, "200", Subtotal(lines), "subtotal")
}
