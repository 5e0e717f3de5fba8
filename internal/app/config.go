package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/storage/postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (AURA_ prefix), flags, YAML config files or a .env
// file in the working directory.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (AURA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MaxConns     int32         `default:"10" usage:"Maximum PostgreSQL pool connections" flag:"max-conns"`
	APIKeyPepper string        `usage:"HMAC pepper for staff API key hashing" flag:"api-key-pepper"`
	JWTSecret    string        `usage:"HS256 secret for shopper bearer tokens" flag:"jwt-secret"`
	JWTTTL       time.Duration `default:"24h" usage:"Shopper token lifetime" flag:"jwt-ttl"`
	Pricing      PricingConfig
	Payment      PaymentConfig
	Tx           TxConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig holds store-wide pricing constants as decimal strings.
type PricingConfig struct {
	TaxRate                  string `default:"0.05" usage:"Tax rate applied to the subtotal"`
	FreeShippingThreshold    string `default:"1000" usage:"Subtotal above which shipping is free"`
	ShippingFee              string `default:"50"   usage:"Flat shipping fee"`
	DefaultDiscountThreshold string `default:"1500" usage:"Subtotal from which the default discount applies"`
	DefaultDiscount          string `default:"100"  usage:"Flat discount when no coupon applies"`
	ApplyOffersAtCheckout    bool   `default:"false" usage:"Snapshot offer prices into orders" flag:"apply-offers-at-checkout"`
}

// PaymentConfig selects the online payment gateway.
type PaymentConfig struct {
	Provider            string `default:"none" usage:"Payment provider: none or stripe"`
	StripeAPIKey        string `usage:"Stripe secret key" flag:"stripe-api-key"`
	StripeWebhookSecret string `usage:"Stripe webhook signing secret" flag:"stripe-webhook-secret"`
	Currency            string `default:"inr" usage:"ISO currency for payment intents"`
}

// TxConfig controls transaction retries on serialization failures.
type TxConfig struct {
	MaxRetries  int           `default:"3"    usage:"Retries of a conflicting transaction"`
	BaseBackoff time.Duration `default:"50ms" usage:"Initial retry backoff, doubled per attempt"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

const (
	providerNone   = "none"
	providerStripe = "stripe"
)

// LoadConfig loads .env, then environment variables and YAML config files,
// applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "AURA",
		Files:     []string{"config.yaml", "/etc/aura/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set AURA_DATABASE_URL or DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required: set AURA_JWT_SECRET")
	}
	if _, err := c.Pricing.Policy(); err != nil {
		return err
	}
	switch c.Payment.Provider {
	case providerNone:
	case providerStripe:
		if c.Payment.StripeAPIKey == "" || c.Payment.StripeWebhookSecret == "" {
			return errors.New("stripe provider needs AURA_PAYMENT_STRIPE_API_KEY and AURA_PAYMENT_STRIPE_WEBHOOK_SECRET")
		}
	default:
		return errors.Errorf("unknown payment provider %q", c.Payment.Provider)
	}
	return nil
}

// Policy parses the pricing constants.
func (p PricingConfig) Policy() (pricing.Policy, error) {
	policy := pricing.Policy{ApplyOffersAtCheckout: p.ApplyOffersAtCheckout}
	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"tax rate", p.TaxRate, &policy.TaxRate},
		{"free shipping threshold", p.FreeShippingThreshold, &policy.FreeShippingThreshold},
		{"shipping fee", p.ShippingFee, &policy.ShippingFee},
		{"default discount threshold", p.DefaultDiscountThreshold, &policy.DefaultDiscountThreshold},
		{"default discount", p.DefaultDiscount, &policy.DefaultDiscount},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return pricing.Policy{}, errors.Wrapf(err, "pricing: %s", f.name)
		}
		if d.IsNegative() {
			return pricing.Policy{}, errors.Errorf("pricing: %s must not be negative", f.name)
		}
		*f.dst = d
	}
	return policy, nil
}

// TxOptions converts the retry settings for the unit of work.
func (t TxConfig) TxOptions() postgres.TxOptions {
	opts := postgres.DefaultTxOptions()
	opts.MaxRetries = t.MaxRetries
	opts.BaseBackoff = t.BaseBackoff
	return opts
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's AURA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
