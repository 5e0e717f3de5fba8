// Package stripe implements the order payment gateway on Stripe
// PaymentIntents and verifies Stripe webhook callbacks.
package stripe

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/order"
)

const (
	eventSucceeded = "payment_intent.succeeded"
	eventFailed    = "payment_intent.payment_failed"
)

// ErrSignature is returned for webhook payloads that fail verification.
var ErrSignature = errors.New("stripe: invalid webhook signature")

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Config configures the Gateway.
type Config struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Logger        *zap.Logger

	intents intentAPI
}

var _ order.Gateway = (*Gateway)(nil)

// Gateway creates PaymentIntents for online orders.
type Gateway struct {
	intents       intentAPI
	webhookSecret string
	lg            *zap.Logger
}

// New constructs a Gateway from cfg.
func New(cfg Config) (*Gateway, error) {
	intents := cfg.intents
	if intents == nil {
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" {
			return nil, errors.New("stripe: api key is required")
		}
		intents = client.New(key, cfg.Backends).PaymentIntents
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Gateway{
		intents:       intents,
		webhookSecret: cfg.WebhookSecret,
		lg:            lg,
	}, nil
}

// CreatePayment creates a PaymentIntent for the order total. The order id is
// the idempotency key, so a retried request yields the same intent.
func (g *Gateway) CreatePayment(ctx context.Context, req order.PaymentRequest) (order.PaymentIntent, error) {
	amount, err := minorUnits(req.Amount)
	if err != nil {
		return order.PaymentIntent{}, err
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.SetIdempotencyKey("order-" + req.OrderID)

	pi, err := g.intents.New(params)
	if err != nil {
		return order.PaymentIntent{}, errors.Wrap(err, "create payment intent")
	}
	g.lg.Info("Payment intent created",
		zap.String("order_id", req.OrderID),
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount", amount),
	)
	return order.PaymentIntent{GatewayOrderID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// minorUnits converts an amount to the smallest currency unit.
func minorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, errors.Errorf("stripe: amount %s must be positive", amount)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}

// ParseWebhook verifies a webhook payload against its Stripe-Signature
// header. It reports false for event types that carry no payment outcome.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (order.PaymentResult, bool, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return order.PaymentResult{}, false, errors.Wrap(ErrSignature, err.Error())
	}

	switch string(ev.Type) {
	case eventSucceeded, eventFailed:
	default:
		g.lg.Debug("Ignoring webhook event", zap.String("type", string(ev.Type)))
		return order.PaymentResult{}, false, nil
	}
	if ev.Data == nil {
		return order.PaymentResult{}, false, errors.New("stripe: event without data")
	}

	id, reason, err := decodeIntent(ev.Data.Raw)
	if err != nil {
		return order.PaymentResult{}, false, err
	}
	return order.PaymentResult{
		GatewayOrderID: id,
		Succeeded:      string(ev.Type) == eventSucceeded,
		Reason:         reason,
	}, true, nil
}

// decodeIntent reads the intent id and the last payment error message.
func decodeIntent(raw []byte) (id, reason string, err error) {
	d := jx.DecodeBytes(raw)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			id = v
			return err
		case "last_payment_error":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "message" {
					return d.Skip()
				}
				v, err := d.Str()
				reason = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", "", errors.Wrap(err, "decode payment intent")
	}
	if id == "" {
		return "", "", errors.New("stripe: payment intent without id")
	}
	return id, reason, nil
}
