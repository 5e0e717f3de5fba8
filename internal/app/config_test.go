package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/aura-scents/internal/domain/pricing"
)

func defaultPricing() PricingConfig {
	return PricingConfig{
		TaxRate:                  "0.05",
		FreeShippingThreshold:    "1000",
		ShippingFee:              "50",
		DefaultDiscountThreshold: "1500",
		DefaultDiscount:          "100",
	}
}

func TestPricingPolicy(t *testing.T) {
	got, err := defaultPricing().Policy()
	require.NoError(t, err)

	want := pricing.DefaultPolicy()
	assert.True(t, want.TaxRate.Equal(got.TaxRate))
	assert.True(t, want.FreeShippingThreshold.Equal(got.FreeShippingThreshold))
	assert.True(t, want.ShippingFee.Equal(got.ShippingFee))
	assert.True(t, want.DefaultDiscountThreshold.Equal(got.DefaultDiscountThreshold))
	assert.True(t, want.DefaultDiscount.Equal(got.DefaultDiscount))
	assert.False(t, got.ApplyOffersAtCheckout)

	p := defaultPricing()
	p.ShippingFee = "fifty"
	_, err = p.Policy()
	assert.ErrorContains(t, err, "pricing: shipping fee")

	p = defaultPricing()
	p.DefaultDiscount = "-1"
	_, err = p.Policy()
	assert.EqualError(t, err, "pricing: default discount must not be negative")
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/aura",
			JWTSecret:   "secret",
			Pricing:     defaultPricing(),
			Payment:     PaymentConfig{Provider: providerNone, Currency: "inr"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		err    string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, err: "database URL is required"},
		{name: "no jwt secret", mutate: func(c *Config) { c.JWTSecret = "" }, err: "JWT secret is required"},
		{name: "bad pricing", mutate: func(c *Config) { c.Pricing.TaxRate = "x" }, err: "pricing: tax rate"},
		{name: "unknown provider", mutate: func(c *Config) { c.Payment.Provider = "paypal" }, err: `unknown payment provider "paypal"`},
		{
			name:   "stripe without secrets",
			mutate: func(c *Config) { c.Payment.Provider = providerStripe },
			err:    "stripe provider needs",
		},
		{
			name: "stripe",
			mutate: func(c *Config) {
				c.Payment = PaymentConfig{Provider: providerStripe, StripeAPIKey: "sk_test", StripeWebhookSecret: "whsec"}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestTxOptions(t *testing.T) {
	opts := TxConfig{MaxRetries: 5, BaseBackoff: 20 * time.Millisecond}.TxOptions()
	assert.Equal(t, 5, opts.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, opts.BaseBackoff)
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

