// Command seed-db loads a demo catalog, offers, coupons and a staff API key,
// and can mint a shopper bearer token for local testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/auth"
	"github.com/xenking/aura-scents/internal/domain/catalog"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/promotion"
	"github.com/xenking/aura-scents/internal/storage/postgres"
)

type seedFile struct {
	Categories []categorySeed `json:"categories"`
	Offers     []offerSeed    `json:"offers"`
	Coupons    []couponSeed   `json:"coupons"`
}

type categorySeed struct {
	Name     string        `json:"name"`
	Products []productSeed `json:"products"`
}

type productSeed struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Variants []struct {
		Volume decimal.Decimal `json:"volume"`
		Unit   string          `json:"unit"`
		Price  decimal.Decimal `json:"price"`
		Stock  int             `json:"stock"`
	} `json:"variants"`
}

type offerSeed struct {
	Name               string          `json:"name"`
	Target             string          `json:"target"`
	TargetName         string          `json:"target_name"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
}

type couponSeed struct {
	Code               string              `json:"code"`
	DiscountType       string              `json:"discount_type"`
	DiscountValue      decimal.Decimal     `json:"discount_value"`
	MinimumOrderAmount decimal.Decimal     `json:"minimum_order_amount"`
	MaxDiscountAmount  decimal.NullDecimal `json:"max_discount_amount"`
	ValidFrom          time.Time           `json:"valid_from"`
	ValidUntil         time.Time           `json:"valid_until"`
	UsageLimit         *int                `json:"usage_limit"`
}

type options struct {
	databaseURL string
	seedFile    string
	apiKey      string
	pepper      string
	jwtSecret   string
	shopperID   int64
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.seedFile, "seed-file", "db/seed/catalog.json", "path to the seed JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "staff API key to seed with every scope (or AURA_SEED_API_KEY env)")
	flag.StringVar(&opts.pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or AURA_API_KEY_PEPPER env)")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "print a shopper token signed with this secret (or AURA_JWT_SECRET env)")
	flag.Int64Var(&opts.shopperID, "shopper-id", 1, "user id of the printed shopper token")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.apiKey = orEnv(opts.apiKey, "AURA_SEED_API_KEY")
	opts.pepper = orEnv(opts.pepper, "AURA_API_KEY_PEPPER")
	opts.jwtSecret = orEnv(opts.jwtSecret, "AURA_JWT_SECRET")

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if opts.databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		if opts.apiKey == "" {
			return errors.New("API key is required: set --api-key or AURA_SEED_API_KEY")
		}
		if err := run(ctx, lg, opts); err != nil {
			return errors.Wrap(err, "seed")
		}
		lg.Info("Seed completed")
		return nil
	})
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data, err := os.ReadFile(opts.seedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL, 4)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	s := &seeder{
		lg:       lg,
		catalog:  postgres.NewCatalogRepository(pool),
		offers:   postgres.NewOfferRepository(pool),
		coupons:  postgres.NewCouponRepository(pool),
		keys:     postgres.NewAPIKeyRepository(pool),
		category: make(map[string]int64),
		product:  make(map[string]int64),
	}
	uow := postgres.NewUnitOfWork(pool, postgres.DefaultTxOptions(), lg)
	if err := uow.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.seedCatalog(ctx, seed.Categories); err != nil {
			return errors.Wrap(err, "catalog")
		}
		if err := s.seedOffers(ctx, seed.Offers); err != nil {
			return errors.Wrap(err, "offers")
		}
		if err := s.seedCoupons(ctx, seed.Coupons); err != nil {
			return errors.Wrap(err, "coupons")
		}
		return s.seedAPIKey(ctx, opts.apiKey, opts.pepper)
	}); err != nil {
		return err
	}

	if opts.jwtSecret != "" {
		token, err := auth.NewTokenIssuer([]byte(opts.jwtSecret), 0).Issue(opts.shopperID)
		if err != nil {
			return errors.Wrap(err, "issue shopper token")
		}
		lg.Info("Shopper token", zap.Int64("user_id", opts.shopperID), zap.String("token", token))
	}
	return nil
}

type seeder struct {
	lg       *zap.Logger
	catalog  *postgres.CatalogRepository
	offers   *postgres.OfferRepository
	coupons  *postgres.CouponRepository
	keys     *postgres.APIKeyRepository
	category map[string]int64
	product  map[string]int64
}

func (s *seeder) seedCatalog(ctx context.Context, categories []categorySeed) error {
	for _, cs := range categories {
		c := catalog.Category{Name: cs.Name}
		if err := s.catalog.UpsertCategory(ctx, &c); err != nil {
			return err
		}
		s.category[c.Name] = c.ID

		for _, ps := range cs.Products {
			p := catalog.Product{CategoryID: c.ID, Name: ps.Name, Price: ps.Price, Stock: ps.Stock}
			if err := s.catalog.UpsertProduct(ctx, &p); err != nil {
				return err
			}
			s.product[p.Name] = p.ID

			for _, vs := range ps.Variants {
				v := catalog.Variant{
					ProductID: p.ID,
					Volume:    vs.Volume,
					Unit:      catalog.Unit(vs.Unit),
					Price:     vs.Price,
					Stock:     vs.Stock,
				}
				if err := s.catalog.UpsertVariant(ctx, &v); err != nil {
					return err
				}
			}
			s.lg.Info("Upserted product",
				zap.Int64("id", p.ID),
				zap.String("name", p.Name),
				zap.Int("variants", len(ps.Variants)),
			)
		}
	}
	return nil
}

// seedOffers skips offers whose name already exists on the same target so
// the seed can run repeatedly.
func (s *seeder) seedOffers(ctx context.Context, offers []offerSeed) error {
	svc := promotion.NewService(s.offers)
	for _, seed := range offers {
		kind, err := promotion.ParseTargetKind(seed.Target)
		if err != nil {
			return errors.Wrapf(err, "offer %q", seed.Name)
		}
		ids := s.product
		if kind == promotion.TargetCategory {
			ids = s.category
		}
		id, ok := ids[seed.TargetName]
		if !ok {
			return errors.Errorf("offer %q: unknown %s %q", seed.Name, kind, seed.TargetName)
		}
		target := promotion.Target{Kind: kind, ID: id}

		existing, err := s.offers.ListByTarget(ctx, target)
		if err != nil {
			return err
		}
		if containsOffer(existing, seed.Name) {
			continue
		}
		o, err := svc.Create(ctx, promotion.Offer{
			Name:               seed.Name,
			Target:             target,
			DiscountPercentage: seed.DiscountPercentage,
			StartDate:          seed.StartDate,
			EndDate:            seed.EndDate,
			IsActive:           true,
		})
		if err != nil {
			return errors.Wrapf(err, "offer %q", seed.Name)
		}
		s.lg.Info("Created offer", zap.Int64("id", o.ID), zap.String("name", o.Name))
	}
	return nil
}

func containsOffer(offers []promotion.Offer, name string) bool {
	for _, o := range offers {
		if o.Name == name {
			return true
		}
	}
	return false
}

func (s *seeder) seedCoupons(ctx context.Context, coupons []couponSeed) error {
	svc := coupon.NewService(s.coupons)
	for _, cs := range coupons {
		_, err := s.coupons.FindByCode(ctx, coupon.NormalizeCode(cs.Code))
		if err == nil {
			s.lg.Info("Coupon exists", zap.String("code", cs.Code))
			continue
		}
		if !errors.Is(err, coupon.ErrNotFound) {
			return err
		}
		c, err := svc.Create(ctx, coupon.Coupon{
			Code:               cs.Code,
			Type:               coupon.Type(cs.DiscountType),
			DiscountValue:      cs.DiscountValue,
			MinimumOrderAmount: cs.MinimumOrderAmount,
			MaxDiscountAmount:  cs.MaxDiscountAmount,
			ValidFrom:          cs.ValidFrom,
			ValidUntil:         cs.ValidUntil,
			UsageLimit:         cs.UsageLimit,
			IsActive:           true,
		})
		if err != nil {
			return errors.Wrapf(err, "coupon %s", cs.Code)
		}
		s.lg.Info("Created coupon", zap.String("code", c.Code))
	}
	return nil
}

func (s *seeder) seedAPIKey(ctx context.Context, key, pepper string) error {
	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(pepper), key),
		Name:    "Default staff key",
		Scopes:  []string{auth.ScopeAll},
	}
	if err := s.keys.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "api key")
	}
	s.lg.Info("Upserted API key", zap.String("id", info.ID), zap.Strings("scopes", info.Scopes))
	return nil
}
