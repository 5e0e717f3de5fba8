package handler

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/order"
	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/domain/promotion"
	"github.com/xenking/aura-scents/internal/domain/wallet"
	"github.com/xenking/aura-scents/internal/report"
)

func encodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { money(e, b.Subtotal) })
		e.Field("tax", func(e *jx.Encoder) { money(e, b.Tax) })
		e.Field("shipping", func(e *jx.Encoder) { money(e, b.Shipping) })
		e.Field("discount", func(e *jx.Encoder) { money(e, b.Discount) })
		e.Field("total", func(e *jx.Encoder) { money(e, b.Total) })
		e.Field("discount_source", func(e *jx.Encoder) { e.Str(string(b.DiscountSource)) })
		if b.CouponCode != "" {
			e.Field("coupon_code", func(e *jx.Encoder) { e.Str(b.CouponCode) })
		}
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order, b pricing.Breakdown) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.OrderID) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("is_paid", func(e *jx.Encoder) { e.Bool(o.IsPaid) })
		e.Field("refund_processed", func(e *jx.Encoder) { e.Bool(o.RefundProcessed) })
		if o.Remarks != "" {
			e.Field("remarks", func(e *jx.Encoder) { e.Str(o.Remarks) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeOrderItem(e, it)
				}
			})
		})
		e.Field("totals", func(e *jx.Encoder) { encodeBreakdown(e, b) })
	})
}

func encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(it.ProductName) })
		if it.ProductID != nil {
			e.Field("product_id", func(e *jx.Encoder) { e.Int64(*it.ProductID) })
		}
		if it.VariantID != nil {
			e.Field("variant_id", func(e *jx.Encoder) { e.Int64(*it.VariantID) })
		}
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("price", func(e *jx.Encoder) { money(e, it.Price) })
		e.Field("subtotal", func(e *jx.Encoder) { money(e, it.Subtotal()) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(it.Status)) })
		if it.Remarks != "" {
			e.Field("remarks", func(e *jx.Encoder) { e.Str(it.Remarks) })
		}
	})
}

func encodeCart(e *jx.Encoder, v *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range v.Lines {
					encodeCartLine(e, l)
				}
			})
		})
		e.Field("totals", func(e *jx.Encoder) { encodeBreakdown(e, v.Breakdown) })
		if v.CouponError != "" {
			e.Field("coupon_error", func(e *jx.Encoder) { e.Str(v.CouponError) })
		}
	})
}

func encodeCartLine(e *jx.Encoder, l cart.ViewLine) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(l.ID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.Product.ID) })
		if id := l.VariantID(); id != nil {
			e.Field("variant_id", func(e *jx.Encoder) { e.Int64(*id) })
		}
		e.Field("name", func(e *jx.Encoder) { e.Str(l.DisplayName()) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { money(e, l.UnitPrice) })
		e.Field("display_unit_price", func(e *jx.Encoder) { money(e, l.DisplayUnitPrice) })
		e.Field("line_total", func(e *jx.Encoder) { money(e, l.LineTotal) })
		if l.Offer != nil {
			e.Field("offer", func(e *jx.Encoder) { e.Str(l.Offer.Name) })
		}
	})
}

func encodeWallet(e *jx.Encoder, w wallet.Wallet, txs []wallet.Transaction) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("balance", func(e *jx.Encoder) { money(e, w.Balance) })
		e.Field("transactions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, t := range txs {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(t.ID) })
						e.Field("type", func(e *jx.Encoder) { e.Str(string(t.Type)) })
						e.Field("amount", func(e *jx.Encoder) { money(e, t.Amount) })
						e.Field("description", func(e *jx.Encoder) { e.Str(t.Description) })
						e.Field("created_at", func(e *jx.Encoder) { e.Str(t.CreatedAt.UTC().Format(time.RFC3339)) })
					})
				}
			})
		})
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("discount_value", func(e *jx.Encoder) { money(e, c.DiscountValue) })
		e.Field("minimum_order_amount", func(e *jx.Encoder) { money(e, c.MinimumOrderAmount) })
		if c.MaxDiscountAmount.Valid {
			e.Field("max_discount_amount", func(e *jx.Encoder) { money(e, c.MaxDiscountAmount.Decimal) })
		}
		e.Field("valid_from", func(e *jx.Encoder) { e.Str(c.ValidFrom.UTC().Format(time.RFC3339)) })
		e.Field("valid_until", func(e *jx.Encoder) { e.Str(c.ValidUntil.UTC().Format(time.RFC3339)) })
		if c.UsageLimit != nil {
			e.Field("usage_limit", func(e *jx.Encoder) { e.Int(*c.UsageLimit) })
		}
		e.Field("usage_count", func(e *jx.Encoder) { e.Int(c.UsageCount) })
		e.Field("is_active", func(e *jx.Encoder) { e.Bool(c.IsActive) })
	})
}

func encodeOffer(e *jx.Encoder, o *promotion.Offer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
		e.Field("offer_type", func(e *jx.Encoder) { e.Str(string(o.Target.Kind)) })
		e.Field("target_id", func(e *jx.Encoder) { e.Int64(o.Target.ID) })
		e.Field("discount_percentage", func(e *jx.Encoder) { money(e, o.DiscountPercentage) })
		e.Field("start_date", func(e *jx.Encoder) { e.Str(o.StartDate.UTC().Format(time.RFC3339)) })
		e.Field("end_date", func(e *jx.Encoder) { e.Str(o.EndDate.UTC().Format(time.RFC3339)) })
		e.Field("is_active", func(e *jx.Encoder) { e.Bool(o.IsActive) })
	})
}

func encodeTotals(e *jx.Encoder, t report.Totals) {
	e.Field("orders", func(e *jx.Encoder) { e.Int(t.Orders) })
	e.Field("subtotal", func(e *jx.Encoder) { money(e, t.Subtotal) })
	e.Field("discount", func(e *jx.Encoder) { money(e, t.Discount) })
	e.Field("tax", func(e *jx.Encoder) { money(e, t.Tax) })
	e.Field("shipping", func(e *jx.Encoder) { money(e, t.Shipping) })
	e.Field("total", func(e *jx.Encoder) { money(e, t.Total) })
}

func encodeSales(e *jx.Encoder, s *report.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("from", func(e *jx.Encoder) { e.Str(s.From.Format(time.RFC3339)) })
		e.Field("to", func(e *jx.Encoder) { e.Str(s.To.Format(time.RFC3339)) })
		encodeTotals(e, s.Totals)
		e.Field("coupon_discount", func(e *jx.Encoder) { money(e, s.CouponDiscount) })
		e.Field("default_discount", func(e *jx.Encoder) { money(e, s.DefaultDiscount) })
		e.Field("by_status", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, st := range []order.Status{
					order.StatusPending, order.StatusProcessing, order.StatusShipped,
					order.StatusDelivered, order.StatusCancelled, order.StatusReturnRequested,
					order.StatusReturned,
				} {
					if n := s.ByStatus[st]; n > 0 {
						e.Field(string(st), func(e *jx.Encoder) { e.Int(n) })
					}
				}
			})
		})
		e.Field("days", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, d := range s.Days {
					e.Obj(func(e *jx.Encoder) {
						e.Field("date", func(e *jx.Encoder) { e.Str(d.Date.Format(time.DateOnly)) })
						encodeTotals(e, d.Totals)
					})
				}
			})
		})
	})
}
