package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) viewCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.carts.View(r.Context(), shopperID(r), r.URL.Query().Get("coupon"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, v) })
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID int64
		variantID *int64
		quantity  = 1
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = d.Int64()
		case "variant_id":
			variantID, err = decodeOptInt64(d)
		case "quantity":
			quantity, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if productID <= 0 {
		writeError(w, r, invalid("product_id is required"))
		return
	}

	if err := h.carts.Add(r.Context(), shopperID(r), productID, variantID, quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.viewCartStatus(w, r, http.StatusCreated)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathInt64(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var quantity int
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		quantity, err = d.Int()
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), shopperID(r), itemID, quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.viewCartStatus(w, r, http.StatusOK)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathInt64(r, "itemID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.carts.Remove(r.Context(), shopperID(r), itemID); err != nil {
		writeError(w, r, err)
		return
	}
	h.viewCartStatus(w, r, http.StatusOK)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), shopperID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// viewCartStatus responds with the updated cart.
func (h *Handler) viewCartStatus(w http.ResponseWriter, r *http.Request, status int) {
	v, err := h.carts.View(r.Context(), shopperID(r), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodeCart(e, v) })
}
