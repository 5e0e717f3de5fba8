package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/aura-scents/internal/domain/order"
	"github.com/xenking/aura-scents/internal/domain/pricing"
)

type memOrders struct {
	orders []order.Order
	from   time.Time
	to     time.Time
}

func (m *memOrders) ListCreatedBetween(_ context.Context, from, to time.Time) ([]order.Order, error) {
	m.from, m.to = from, to
	var out []order.Order
	for _, o := range m.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func placed(at time.Time, status order.Status, price string, qty int) order.Order {
	return order.Order{
		OrderID:   "ORD-" + at.Format("20060102150405"),
		CreatedAt: at,
		Status:    status,
		Items:     []order.Item{{Price: d(price), Quantity: qty, Status: status}},
	}
}

func TestSales(t *testing.T) {
	day1 := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	withCoupon := placed(day2, order.StatusDelivered, "500", 2)
	withCoupon.CouponCode = "SAVE10"
	withCoupon.CouponDiscount = decimal.NewNullDecimal(d("100"))

	repo := &memOrders{orders: []order.Order{
		placed(day1, order.StatusPending, "1500", 1),
		placed(day1, order.StatusFailed, "9999", 1),
		withCoupon,
		placed(day2, order.StatusCancelled, "200", 1),
	}}
	svc := NewService(repo, pricing.NewEngine(pricing.DefaultPolicy()))

	from := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)
	sum, err := svc.Sales(context.Background(), from, to)
	require.NoError(t, err)

	// 1500: tax 75, free shipping, default discount 100 -> 1475.
	// 1000 with coupon 100: tax 50, shipping 50 -> 1000.
	// 200: tax 10, shipping 50 -> 260.
	assert.Equal(t, 3, sum.Orders)
	assert.True(t, d("2700").Equal(sum.Subtotal), sum.Subtotal.String())
	assert.True(t, d("200").Equal(sum.Discount), sum.Discount.String())
	assert.True(t, d("135").Equal(sum.Tax), sum.Tax.String())
	assert.True(t, d("100").Equal(sum.Shipping), sum.Shipping.String())
	assert.True(t, d("2735").Equal(sum.Total), sum.Total.String())
	assert.True(t, d("100").Equal(sum.CouponDiscount))
	assert.True(t, d("100").Equal(sum.DefaultDiscount))
	assert.Equal(t, map[order.Status]int{
		order.StatusPending:   1,
		order.StatusDelivered: 1,
		order.StatusCancelled: 1,
	}, sum.ByStatus)

	require.Len(t, sum.Days, 2)
	assert.Equal(t, from, sum.Days[0].Date)
	assert.Equal(t, 1, sum.Days[0].Orders)
	assert.Equal(t, 2, sum.Days[1].Orders)
	assert.True(t, d("1260").Equal(sum.Days[1].Total), sum.Days[1].Total.String())
}

func TestSalesInvalidRange(t *testing.T) {
	svc := NewService(&memOrders{}, pricing.NewEngine(pricing.DefaultPolicy()))
	now := time.Now()
	_, err := svc.Sales(context.Background(), now, now)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestRange(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	tests := []struct {
		period   Period
		from, to time.Time
		wantFrom time.Time
		wantTo   time.Time
		wantErr  bool
	}{
		{period: PeriodDaily, wantFrom: today, wantTo: tomorrow},
		{period: PeriodWeekly, wantFrom: today.AddDate(0, 0, -6), wantTo: tomorrow},
		{period: PeriodMonthly, wantFrom: today.AddDate(0, 0, -29), wantTo: tomorrow},
		{
			period:   PeriodCustom,
			from:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			to:       time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC),
			wantFrom: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
		},
		{period: PeriodCustom, wantErr: true},
		{period: PeriodCustom, from: today, to: today.AddDate(0, 0, -2), wantErr: true},
		{period: "yearly", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			from, to, err := Range(tt.period, now, tt.from, tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}
