package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/order"
)

const signatureHeader = "Stripe-Signature"

// paymentWebhook records a verified gateway callback. Unknown gateway ids
// are acknowledged so the gateway stops retrying them.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, errors.Wrap(err, "read webhook"))
		return
	}
	res, ok, err := h.webhooks.ParseWebhook(payload, r.Header.Get(signatureHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	lg := zctx.From(r.Context()).With(
		zap.String("gateway_order_id", res.GatewayOrderID),
		zap.Bool("succeeded", res.Succeeded),
	)
	o, err := h.orders.RecordPayment(r.Context(), res)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			lg.Warn("Payment for unknown order")
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeError(w, r, err)
		return
	}
	lg.Info("Payment recorded",
		zap.String("order_id", o.OrderID),
		zap.String("status", string(o.Status)),
		zap.Bool("is_paid", o.IsPaid),
	)
	writeJSON(w, http.StatusOK, nil)
}
