package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/aura-scents/internal/domain/order"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	cmd := order.CheckoutCommand{UserID: shopperID(r)}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "address_id":
			cmd.AddressID, err = decodeOptInt64(d)
		case "payment_method":
			var s string
			s, err = d.Str()
			cmd.PaymentMethod = order.PaymentMethod(s)
		case "coupon_code":
			cmd.CouponCode, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.orders.Checkout(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order", func(e *jx.Encoder) { encodeOrder(e, res.Order, res.Breakdown) })
			if res.Payment != nil {
				e.Field("payment", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("gateway_order_id", func(e *jx.Encoder) { e.Str(res.Payment.GatewayOrderID) })
						e.Field("client_secret", func(e *jx.Encoder) { e.Str(res.Payment.ClientSecret) })
					})
				})
			}
		})
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, invalid("invalid limit"))
			return
		}
		limit = v
	}
	orders, err := h.orders.ListOrders(r.Context(), shopperID(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i], h.orders.Totals(&orders[i]))
			}
		})
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetUserOrder(r.Context(), shopperID(r), chi.URLParam(r, "orderID"))
	h.respondOrder(w, r, o, err)
}

// reasonBody reads {"reason": "..."}. Whether an empty reason is acceptable
// is up to the order service.
func reasonBody(r *http.Request) (string, error) {
	var reason string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "reason" {
			return d.Skip()
		}
		var err error
		reason, err = d.Str()
		return err
	})
	return reason, err
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	reason, err := reasonBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.CancelOrder(r.Context(), order.CancelOrderCommand{
		UserID:  shopperID(r),
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  reason,
	})
	h.respondOrder(w, r, o, err)
}

func (h *Handler) returnOrder(w http.ResponseWriter, r *http.Request) {
	reason, err := reasonBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.ReturnOrder(r.Context(), order.ReturnOrderCommand{
		UserID:  shopperID(r),
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  reason,
	})
	h.respondOrder(w, r, o, err)
}

func (h *Handler) cancelItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathInt64(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	reason, err := reasonBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.CancelItem(r.Context(), order.CancelItemCommand{
		UserID:  shopperID(r),
		OrderID: chi.URLParam(r, "orderID"),
		ItemID:  itemID,
		Reason:  reason,
	})
	h.respondOrder(w, r, o, err)
}

func (h *Handler) returnItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathInt64(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	reason, err := reasonBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.ReturnItem(r.Context(), order.ReturnItemCommand{
		UserID:  shopperID(r),
		OrderID: chi.URLParam(r, "orderID"),
		ItemID:  itemID,
		Reason:  reason,
	})
	h.respondOrder(w, r, o, err)
}

func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request, o *order.Order, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o, h.orders.Totals(o)) })
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	wl, txs, err := h.wallets.Statement(r.Context(), shopperID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeWallet(e, wl, txs) })
}
