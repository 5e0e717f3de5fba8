// Command coupon-import bulk-loads campaign coupons from CSV files.
//
//	coupon-import -database-url postgres://... spring.csv.gz partners.csv
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/couponimport"
	"github.com/xenking/aura-scents/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		opts        couponimport.Options
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.BatchSize, "batch-size", 500, "coupons per insert batch")
	flag.UintVar(&opts.Capacity, "expected-codes", 1_000_000, "expected codes per file, sizes the bloom filters")
	flag.Float64Var(&opts.FPR, "fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	files := flag.Args()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		if len(files) == 0 {
			return errors.New("no input files")
		}

		pool, err := postgres.NewPool(ctx, databaseURL, 4)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}

		imp := couponimport.New(postgres.NewCouponRepository(pool), lg, opts)
		stats, err := imp.Import(ctx, files)
		if err != nil {
			return errors.Wrap(err, "import")
		}
		lg.Info("Coupon import completed",
			zap.Int("files", len(files)),
			zap.Int("rows", stats.Rows),
			zap.Int("invalid", stats.Invalid),
			zap.Int("duplicates", stats.Duplicates),
			zap.Int("conflicts", stats.Conflicts),
			zap.Int("inserted", stats.Inserted),
			zap.Int("existing", stats.Existing),
		)
		return nil
	})
}
