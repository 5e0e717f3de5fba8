package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/auth"
	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/catalog"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/order"
	"github.com/xenking/aura-scents/internal/domain/promotion"
	"github.com/xenking/aura-scents/internal/payment/stripe"
	"github.com/xenking/aura-scents/internal/report"
)

const maxBodyBytes = 1 << 20

// badRequest is a malformed request; its message is shown to the caller.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, data func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(status < 400) })
		if data != nil {
			e.Field("data", data)
		}
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, message string, field string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(status < 400) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if field != "" {
			e.Field("field", func(e *jx.Encoder) { e.Str(field) })
		}
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError maps a domain error to a status and message. Anything
// unrecognized is logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, field := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeMessage(w, status, message, field)
}

func classify(err error) (status int, message, field string) {
	var (
		bad        *badRequest
		rejected   *order.RejectedError
		noStock    *order.InsufficientStockError
		exceeds    *cart.ExceedsStockError
		couponVal  *coupon.ValidationError
		offerVal   *promotion.ValidationError
		notApplies *coupon.NotApplicableError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg, ""
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", ""
	case errors.As(err, &rejected):
		return http.StatusBadRequest, rejected.Reason, ""
	case errors.As(err, &noStock):
		return http.StatusConflict, noStock.Error(), ""
	case errors.As(err, &exceeds):
		return http.StatusConflict, exceeds.Error(), ""
	case errors.As(err, &couponVal):
		return http.StatusUnprocessableEntity, couponVal.Message, couponVal.Field
	case errors.As(err, &offerVal):
		return http.StatusUnprocessableEntity, offerVal.Message, offerVal.Field
	case errors.As(err, &notApplies):
		return http.StatusUnprocessableEntity, notApplies.Reason, ""
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, promotion.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariantNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound):
		return http.StatusNotFound, rootMessage(err), ""
	case errors.Is(err, order.ErrUnknownStatus),
		errors.Is(err, order.ErrUnknownPaymentMethod),
		errors.Is(err, order.ErrReasonRequired),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrUnavailable),
		errors.Is(err, cart.ErrVariantMismatch),
		errors.Is(err, promotion.ErrInvalidTarget),
		errors.Is(err, report.ErrInvalidRange),
		errors.Is(err, stripe.ErrSignature):
		return http.StatusBadRequest, rootMessage(err), ""
	default:
		return http.StatusInternalServerError, "internal server error", ""
	}
}

// rootMessage is the innermost error text, which is the sentinel message
// rather than the wrapping context.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// decodeBody decodes a JSON object body field by field.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(body) == 0 {
		return invalid("request body is required")
	}
	if err := jx.DecodeBytes(body).Obj(field); err != nil {
		var bad *badRequest
		if errors.As(err, &bad) {
			return bad
		}
		return invalid("invalid JSON body: %v", err)
	}
	return nil
}

// decodeDecimal accepts a JSON number or numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return parseDecimal(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return parseDecimal(n.String())
	default:
		return decimal.Zero, invalid("expected a number")
	}
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, invalid("invalid amount %q", s)
	}
	return v, nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return parseTime(s)
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, invalid("invalid time %q", s)
	}
	return t, nil
}

func decodeOptInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, invalid("invalid %s", name)
	}
	return v, nil
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}
