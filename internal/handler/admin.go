package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/order"
	"github.com/xenking/aura-scents/internal/domain/promotion"
	"github.com/xenking/aura-scents/internal/report"
)

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	h.respondOrder(w, r, o, err)
}

func statusBody(r *http.Request, parse func(string) (order.Status, error)) (order.Status, string, error) {
	var (
		raw     string
		remarks string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			raw, err = d.Str()
		case "remarks":
			remarks, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return "", "", err
	}
	st, err := parse(raw)
	if err != nil {
		return "", "", err
	}
	return st, remarks, nil
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	st, remarks, err := statusBody(r, order.ParseStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateOrderStatus(r.Context(), order.UpdateOrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  st,
		Remarks: remarks,
	})
	if err == nil {
		h.audit(r, "Order status updated", zap.String("order_id", o.OrderID), zap.String("status", string(st)))
	}
	h.respondOrder(w, r, o, err)
}

func (h *Handler) updateItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathInt64(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, remarks, err := statusBody(r, order.ParseItemStatus)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateItemStatus(r.Context(), order.UpdateItemStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ItemID:  itemID,
		Status:  st,
		Remarks: remarks,
	})
	if err == nil {
		h.audit(r, "Item status updated",
			zap.String("order_id", o.OrderID),
			zap.Int64("item_id", itemID),
			zap.String("status", string(st)),
		)
	}
	h.respondOrder(w, r, o, err)
}

func (h *Handler) audit(r *http.Request, msg string, fields ...zap.Field) {
	if k, ok := staffFromContext(r.Context()); ok {
		fields = append(fields, zap.String("staff_key_id", k.ID))
	}
	zctx.From(r.Context()).Info(msg, fields...)
}

func decodeCoupon(r *http.Request) (coupon.Coupon, error) {
	c := coupon.Coupon{IsActive: true}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "discount_type":
			var s string
			s, err = d.Str()
			c.Type = coupon.Type(strings.ToLower(strings.TrimSpace(s)))
		case "discount_value":
			c.DiscountValue, err = decodeDecimal(d)
		case "minimum_order_amount":
			c.MinimumOrderAmount, err = decodeDecimal(d)
		case "max_discount_amount":
			c.MaxDiscountAmount, err = decodeNullDecimal(d)
		case "valid_from":
			c.ValidFrom, err = decodeTime(d)
		case "valid_until":
			c.ValidUntil, err = decodeTime(d)
		case "usage_limit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var n int
			n, err = d.Int()
			c.UsageLimit = &n
		case "is_active":
			c.IsActive, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	return c, err
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCoupon(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.coupons.Create(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit(r, "Coupon created", zap.String("code", created.Code))
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, created) })
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCoupon(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c.Code = chi.URLParam(r, "code")
	updated, err := h.coupons.Update(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit(r, "Coupon updated", zap.String("code", updated.Code))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, updated) })
}

func decodeOffer(r *http.Request) (promotion.Offer, error) {
	o := promotion.Offer{IsActive: true}
	var (
		kind     string
		targetID int64
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			o.Name, err = d.Str()
		case "offer_type":
			kind, err = d.Str()
		case "target_id":
			targetID, err = d.Int64()
		case "discount_percentage":
			o.DiscountPercentage, err = decodeDecimal(d)
		case "start_date":
			o.StartDate, err = decodeTime(d)
		case "end_date":
			o.EndDate, err = decodeTime(d)
		case "is_active":
			o.IsActive, err = d.Bool()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return promotion.Offer{}, err
	}
	k, err := promotion.ParseTargetKind(kind)
	if err != nil {
		return promotion.Offer{}, &promotion.ValidationError{Field: "offer_type", Message: "must be product or category"}
	}
	o.Target = promotion.Target{Kind: k, ID: targetID}
	return o, nil
}

func (h *Handler) createOffer(w http.ResponseWriter, r *http.Request) {
	o, err := decodeOffer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.offers.Create(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit(r, "Offer created", zap.Int64("offer_id", created.ID))
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOffer(e, created) })
}

func (h *Handler) updateOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "offerID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := decodeOffer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o.ID = id
	updated, err := h.offers.Update(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.audit(r, "Offer updated", zap.Int64("offer_id", updated.ID))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOffer(e, updated) })
}

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to time.Time
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		if s := q.Get(p.name); s != "" {
			t, err := parseTime(s)
			if err != nil {
				writeError(w, r, err)
				return
			}
			*p.dst = t
		}
	}
	start, end, err := report.Range(report.Period(q.Get("period")), h.now(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := h.reports.Sales(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSales(e, sum) })
}
