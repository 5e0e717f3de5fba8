// Package report aggregates sales figures over a date range using the same
// pricing definitions as checkout.
package report

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/aura-scents/internal/domain/order"
	"github.com/xenking/aura-scents/internal/domain/pricing"
)

// Period names a preset date range.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodCustom  Period = "custom"
)

var ErrInvalidRange = errors.New("invalid report range")

// Range resolves p relative to now into a half-open [from, to) interval in
// now's location. Custom ranges use from and to as whole days.
func Range(p Period, now, from, to time.Time) (time.Time, time.Time, error) {
	today := startOfDay(now)
	switch p {
	case PeriodDaily, "":
		return today, today.AddDate(0, 0, 1), nil
	case PeriodWeekly:
		return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1), nil
	case PeriodMonthly:
		return today.AddDate(0, 0, -29), today.AddDate(0, 0, 1), nil
	case PeriodCustom:
		if from.IsZero() || to.IsZero() {
			return time.Time{}, time.Time{}, errors.Wrap(ErrInvalidRange, "custom range needs both dates")
		}
		f, t := startOfDay(from), startOfDay(to).AddDate(0, 0, 1)
		if !f.Before(t) {
			return time.Time{}, time.Time{}, errors.Wrap(ErrInvalidRange, "start is after end")
		}
		return f, t, nil
	default:
		return time.Time{}, time.Time{}, errors.Wrapf(ErrInvalidRange, "unknown period %q", p)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Totals are money sums over a set of orders.
type Totals struct {
	Orders   int
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

func (t *Totals) add(b pricing.Breakdown) {
	t.Orders++
	t.Subtotal = t.Subtotal.Add(b.Subtotal)
	t.Discount = t.Discount.Add(b.Discount)
	t.Tax = t.Tax.Add(b.Tax)
	t.Shipping = t.Shipping.Add(b.Shipping)
	t.Total = t.Total.Add(b.Total)
}

// Day is the totals of one calendar day.
type Day struct {
	Date time.Time
	Totals
}

// Summary is the sales report for [From, To).
type Summary struct {
	From, To time.Time
	Totals
	CouponDiscount  decimal.Decimal
	DefaultDiscount decimal.Decimal
	ByStatus        map[order.Status]int
	Days            []Day
}

// OrderLister lists orders created in a time window.
type OrderLister interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]order.Order, error)
}

// Service builds sales summaries.
type Service struct {
	orders OrderLister
	engine *pricing.Engine
}

// NewService returns a report Service.
func NewService(orders OrderLister, engine *pricing.Engine) *Service {
	return &Service{orders: orders, engine: engine}
}

// Sales summarizes orders created in [from, to). Failed orders never
// completed payment and are left out.
func (s *Service) Sales(ctx context.Context, from, to time.Time) (*Summary, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}
	orders, err := s.orders.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	sum := &Summary{
		From:            from,
		To:              to,
		Totals:          zeroTotals(),
		CouponDiscount:  decimal.Zero,
		DefaultDiscount: decimal.Zero,
		ByStatus:        make(map[order.Status]int),
	}
	days := make(map[time.Time]*Day)
	for i := range orders {
		o := &orders[i]
		if o.Status == order.StatusFailed {
			continue
		}
		b := s.engine.Breakdown(pricing.Subtotal(o.Lines()), o.AppliedCoupon())
		sum.add(b)
		sum.ByStatus[o.Status]++
		switch b.DiscountSource {
		case pricing.DiscountCoupon:
			sum.CouponDiscount = sum.CouponDiscount.Add(b.Discount)
		case pricing.DiscountDefault:
			sum.DefaultDiscount = sum.DefaultDiscount.Add(b.Discount)
		}

		key := startOfDay(o.CreatedAt.In(from.Location()))
		d, ok := days[key]
		if !ok {
			d = &Day{Date: key, Totals: zeroTotals()}
			days[key] = d
		}
		d.add(b)
	}

	for day := startOfDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		if d, ok := days[day]; ok {
			sum.Days = append(sum.Days, *d)
		}
	}
	return sum, nil
}

func zeroTotals() Totals {
	return Totals{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Total:    decimal.Zero,
	}
}
