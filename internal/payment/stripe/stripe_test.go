package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/xenking/aura-scents/internal/domain/order"
)

type fakeIntents struct {
	got *stripe.PaymentIntentParams
	err error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

const secret = "whsec_test"

func newGateway(t *testing.T, intents intentAPI) *Gateway {
	t.Helper()
	g, err := New(Config{WebhookSecret: secret, intents: intents})
	require.NoError(t, err)
	return g
}

func TestNewRequiresKeys(t *testing.T) {
	_, err := New(Config{WebhookSecret: secret})
	require.Error(t, err)

	_, err = New(Config{APIKey: "sk_test"})
	require.Error(t, err)
}

func TestCreatePayment(t *testing.T) {
	intents := &fakeIntents{}
	g := newGateway(t, intents)

	intent, err := g.CreatePayment(context.Background(), order.PaymentRequest{
		OrderID:  "ORD-20250615-1234",
		Amount:   decimal.RequireFromString("1474.50"),
		Currency: "INR",
	})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentIntent{GatewayOrderID: "pi_1", ClientSecret: "pi_1_secret"}, intent)

	require.NotNil(t, intents.got)
	assert.Equal(t, int64(147450), *intents.got.Amount)
	assert.Equal(t, "inr", *intents.got.Currency)
	assert.Equal(t, "ORD-20250615-1234", intents.got.Metadata["order_id"])
	assert.Equal(t, "order-ORD-20250615-1234", *intents.got.IdempotencyKey)
}

func TestCreatePaymentErrors(t *testing.T) {
	t.Run("Gateway", func(t *testing.T) {
		g := newGateway(t, &fakeIntents{err: assert.AnError})
		_, err := g.CreatePayment(context.Background(), order.PaymentRequest{
			OrderID: "o", Amount: decimal.NewFromInt(10), Currency: "inr",
		})
		require.ErrorIs(t, err, assert.AnError)
	})
	t.Run("ZeroAmount", func(t *testing.T) {
		intents := &fakeIntents{}
		g := newGateway(t, intents)
		_, err := g.CreatePayment(context.Background(), order.PaymentRequest{OrderID: "o", Currency: "inr"})
		require.Error(t, err)
		assert.Nil(t, intents.got)
	})
}

func signed(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestParseWebhook(t *testing.T) {
	g := newGateway(t, &fakeIntents{})

	tests := []struct {
		name    string
		payload string
		want    order.PaymentResult
		ok      bool
	}{
		{
			name:    "Succeeded",
			payload: `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","last_payment_error":null}}}`,
			want:    order.PaymentResult{GatewayOrderID: "pi_1", Succeeded: true},
			ok:      true,
		},
		{
			name:    "Failed",
			payload: `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","object":"payment_intent","last_payment_error":{"code":"card_declined","message":"Your card was declined."}}}}`,
			want:    order.PaymentResult{GatewayOrderID: "pi_2", Reason: "Your card was declined."},
			ok:      true,
		},
		{
			name:    "Ignored",
			payload: `{"id":"evt_3","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, header := signed(t, tt.payload)
			got, ok, err := g.ParseWebhook(body, header)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWebhookBadSignature(t *testing.T) {
	g := newGateway(t, &fakeIntents{})
	body, _ := signed(t, `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

	_, ok, err := g.ParseWebhook(body, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrSignature)
	assert.False(t, ok)
}
