// Package app wires configuration, storage, domain services and the HTTP
// server of the API binary.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/aura-scents/internal/domain/auth"
	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/order"
	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/domain/promotion"
	"github.com/xenking/aura-scents/internal/domain/wallet"
	"github.com/xenking/aura-scents/internal/handler"
	"github.com/xenking/aura-scents/internal/metrics"
	"github.com/xenking/aura-scents/internal/notify"
	"github.com/xenking/aura-scents/internal/payment/stripe"
	"github.com/xenking/aura-scents/internal/report"
	"github.com/xenking/aura-scents/internal/storage/postgres"
	"github.com/xenking/aura-scents/pkg/health"
	"github.com/xenking/aura-scents/pkg/httpmiddleware"
)

const serviceName = "aura-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("payment_provider", cfg.Payment.Provider),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Add(health.Readiness, health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	healthSvc.Add(health.Liveness, health.Check{Name: "goroutines", Timeout: time.Second, Func: health.GoroutineCountCheck(10000)})
	healthSvc.Start(ctx, 10*time.Second)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h, err := newHandler(lg, m, cfg, pool, metrics.NewRecorder(reg))
	if err != nil {
		return err
	}

	root := chi.NewRouter()
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	root.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(root,
				httpmiddleware.Recovery(),
				httpmiddleware.CORS(httpmiddleware.CORSConfig{
					AllowOrigins:     cfg.CORS.Origins,
					AllowHeaders:     []string{"Content-Type", "Authorization", "api_key", httpmiddleware.RequestIDHeader},
					ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
					AllowCredentials: cfg.CORS.AllowCredentials,
					MaxAge:           86400,
				}),
				httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
					Max:    cfg.RateLimit.Max,
					Window: cfg.RateLimit.Window,
				}),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.LogRequests(),
			),
			serviceName,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		defer healthSvc.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	healthSvc.SetReady(true)

	return g.Wait()
}

// newHandler builds repositories and domain services on pool and returns
// the API handler on top of them.
func newHandler(lg *zap.Logger, m *app.Telemetry, cfg *Config, pool *pgxpool.Pool, rec order.Recorder) (*handler.Handler, error) {
	policy, err := cfg.Pricing.Policy()
	if err != nil {
		return nil, err
	}

	var (
		catalogRepo = postgres.NewCatalogRepository(pool)
		cartRepo    = postgres.NewCartRepository(pool)
		couponRepo  = postgres.NewCouponRepository(pool)
		offerRepo   = postgres.NewOfferRepository(pool)
		orderRepo   = postgres.NewOrderRepository(pool)
		walletRepo  = postgres.NewWalletRepository(pool)
		apiKeyRepo  = postgres.NewAPIKeyRepository(pool)
	)

	engine := pricing.NewEngine(policy)
	resolver := promotion.NewResolver(offerRepo)
	coupons := coupon.NewService(couponRepo)
	ledger := wallet.NewLedger(walletRepo)

	deps := order.Deps{
		Orders:     orderRepo,
		Inventory:  postgres.NewInventoryRepository(pool),
		Carts:      cartRepo,
		Coupons:    coupons,
		Offers:     resolver,
		Wallet:     ledger,
		Engine:     engine,
		UnitOfWork: postgres.NewUnitOfWork(pool, cfg.Tx.TxOptions(), lg.Named("tx")),
		Currency:   cfg.Payment.Currency,
		Events:     notify.NewLogPublisher(lg.Named("notify")),
		Metrics:    rec,
		Tracer:     m.TracerProvider().Tracer(serviceName),
		Meter:      m.MeterProvider().Meter(serviceName),
		Logger:     lg.Named("order"),
	}

	// Without a gateway only cash on delivery checkouts succeed.
	var webhooks handler.Webhooks
	if cfg.Payment.Provider == providerStripe {
		gw, err := stripe.New(stripe.Config{
			APIKey:        cfg.Payment.StripeAPIKey,
			WebhookSecret: cfg.Payment.StripeWebhookSecret,
			Logger:        lg.Named("stripe"),
		})
		if err != nil {
			return nil, errors.Wrap(err, "create stripe gateway")
		}
		deps.Gateway = gw
		webhooks = gw
	}

	orders, err := order.NewService(deps)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	return handler.New(handler.Deps{
		Orders:   orders,
		Carts:    cart.NewService(cartRepo, catalogRepo, resolver, couponRepo, engine, lg.Named("cart")),
		Wallets:  ledger,
		Coupons:  coupons,
		Offers:   promotion.NewService(offerRepo),
		Reports:  report.NewService(orderRepo, engine),
		Webhooks: webhooks,
		Shoppers: auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL),
		Staff:    auth.NewKeyAuthenticator(apiKeyRepo, []byte(cfg.APIKeyPepper)),
	}), nil
}
