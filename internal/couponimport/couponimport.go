// Package couponimport bulk-loads campaign coupons from CSV files, optionally
// gzip compressed.
//
// A file row is
//
//	code,discount_type,discount_value,minimum_order_amount,max_discount_amount,valid_from,valid_until,usage_limit
//
// where max_discount_amount and usage_limit may be empty, and the dates are
// RFC 3339 or YYYY-MM-DD. A leading header row is skipped.
//
// Import runs in two passes over the files. The first pass builds one bloom
// filter of codes per file. The second pass parses and validates rows and
// holds back every code that may appear in another file. Held back codes are
// imported once when all their definitions agree and dropped as conflicts
// otherwise.
package couponimport

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/aura-scents/internal/domain/coupon"
)

const (
	defaultBatchSize = 500
	defaultCapacity  = 1_000_000
	defaultFPR       = 0.001
	progressEvery    = 100_000
	columns          = 8
)

// Store persists coupons, skipping codes that already exist.
type Store interface {
	InsertMissing(ctx context.Context, coupons []coupon.Coupon) (int, error)
}

// Stats summarises one import.
type Stats struct {
	Rows       int
	Invalid    int
	Duplicates int
	Conflicts  int
	Inserted   int
	Existing   int
}

// Options tune the importer. Zero values use defaults.
type Options struct {
	BatchSize int
	// Capacity is the expected number of codes per file, used to size the
	// bloom filters.
	Capacity uint
	FPR      float64
}

// Importer reads coupon files and writes them to a Store.
type Importer struct {
	store Store
	lg    *zap.Logger
	opts  Options
}

// New returns an Importer writing to store.
func New(store Store, lg *zap.Logger, opts Options) *Importer {
	if lg == nil {
		lg = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Capacity == 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.FPR <= 0 {
		opts.FPR = defaultFPR
	}
	return &Importer{store: store, lg: lg, opts: opts}
}

// fileResult is what pass two found in one file.
type fileResult struct {
	unique  []coupon.Coupon
	shared  map[string][]coupon.Coupon
	rows    int
	invalid int
	dupes   int
}

// Import loads every file and returns the totals. Files are read
// concurrently; nothing is written when a file cannot be read.
func (i *Importer) Import(ctx context.Context, paths []string) (Stats, error) {
	filters, err := i.buildFilters(ctx, paths)
	if err != nil {
		return Stats{}, errors.Wrap(err, "build filters")
	}
	results, err := i.collect(ctx, paths, filters)
	if err != nil {
		return Stats{}, errors.Wrap(err, "collect")
	}

	var (
		stats   Stats
		pending []coupon.Coupon
		shared  = make(map[string][]coupon.Coupon)
	)
	for _, r := range results {
		stats.Rows += r.rows
		stats.Invalid += r.invalid
		stats.Duplicates += r.dupes
		pending = append(pending, r.unique...)
		for code, defs := range r.shared {
			shared[code] = append(shared[code], defs...)
		}
	}
	for code, defs := range shared {
		if !sameDefinition(defs) {
			stats.Conflicts++
			i.lg.Warn("Conflicting coupon definitions", zap.String("code", code), zap.Int("definitions", len(defs)))
			continue
		}
		stats.Duplicates += len(defs) - 1
		pending = append(pending, defs[0])
	}

	for start := 0; start < len(pending); start += i.opts.BatchSize {
		batch := pending[start:min(start+i.opts.BatchSize, len(pending))]
		n, err := i.store.InsertMissing(ctx, batch)
		if err != nil {
			return stats, errors.Wrap(err, "insert coupons")
		}
		stats.Inserted += n
		stats.Existing += len(batch) - n
	}
	return stats, nil
}

func (i *Importer) buildFilters(ctx context.Context, paths []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for idx, path := range paths {
		g.Go(func() error {
			f := bloom.NewWithEstimates(i.opts.Capacity, i.opts.FPR)
			err := streamRecords(ctx, path, func(_ int, rec []string) error {
				f.AddString(coupon.NormalizeCode(rec[0]))
				return nil
			})
			if err != nil {
				return err
			}
			filters[idx] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func (i *Importer) collect(ctx context.Context, paths []string, filters []*bloom.BloomFilter) ([]fileResult, error) {
	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for idx, path := range paths {
		g.Go(func() error {
			r := fileResult{shared: make(map[string][]coupon.Coupon)}
			seen := make(map[string]coupon.Coupon)
			lg := i.lg.With(zap.String("file", path))

			err := streamRecords(ctx, path, func(line int, rec []string) error {
				r.rows++
				if r.rows%progressEvery == 0 {
					lg.Info("Import progress", zap.Int("rows", r.rows))
				}
				c, err := ParseRecord(rec)
				if err == nil {
					err = c.Validate()
				}
				if err != nil {
					r.invalid++
					lg.Debug("Invalid coupon row", zap.Int("line", line), zap.Error(err))
					return nil
				}
				if inOtherFile(filters, idx, c.Code) {
					r.shared[c.Code] = append(r.shared[c.Code], c)
					return nil
				}
				if prev, ok := seen[c.Code]; ok {
					if !equalCoupon(prev, c) {
						// Kept as shared so the conflict is reported once.
						r.shared[c.Code] = append(r.shared[c.Code], c)
						return nil
					}
					r.dupes++
					return nil
				}
				seen[c.Code] = c
				return nil
			})
			if err != nil {
				return err
			}
			for code, c := range seen {
				if defs, ok := r.shared[code]; ok {
					r.shared[code] = append(defs, c)
					continue
				}
				r.unique = append(r.unique, c)
			}
			lg.Info("File scanned",
				zap.Int("rows", r.rows),
				zap.Int("invalid", r.invalid),
				zap.Int("shared", len(r.shared)),
			)
			results[idx] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func inOtherFile(filters []*bloom.BloomFilter, self int, code string) bool {
	for j, f := range filters {
		if j != self && f.TestString(code) {
			return true
		}
	}
	return false
}

func sameDefinition(defs []coupon.Coupon) bool {
	for _, c := range defs[1:] {
		if !equalCoupon(defs[0], c) {
			return false
		}
	}
	return true
}

func equalCoupon(a, b coupon.Coupon) bool {
	limitsEqual := (a.UsageLimit == nil) == (b.UsageLimit == nil) &&
		(a.UsageLimit == nil || *a.UsageLimit == *b.UsageLimit)
	maxEqual := a.MaxDiscountAmount.Valid == b.MaxDiscountAmount.Valid &&
		a.MaxDiscountAmount.Decimal.Equal(b.MaxDiscountAmount.Decimal)
	return a.Code == b.Code &&
		a.Type == b.Type &&
		a.DiscountValue.Equal(b.DiscountValue) &&
		a.MinimumOrderAmount.Equal(b.MinimumOrderAmount) &&
		maxEqual &&
		a.ValidFrom.Equal(b.ValidFrom) &&
		a.ValidUntil.Equal(b.ValidUntil) &&
		limitsEqual
}

// ParseRecord converts one CSV record into an active coupon. It does not
// run coupon validation.
func ParseRecord(rec []string) (coupon.Coupon, error) {
	if len(rec) != columns {
		return coupon.Coupon{}, errors.Errorf("want %d columns, got %d", columns, len(rec))
	}
	for k := range rec {
		rec[k] = strings.TrimSpace(rec[k])
	}

	c := coupon.Coupon{
		Code:     coupon.NormalizeCode(rec[0]),
		Type:     coupon.Type(strings.ToLower(rec[1])),
		IsActive: true,
	}
	var err error
	if c.DiscountValue, err = decimal.NewFromString(rec[2]); err != nil {
		return c, errors.Wrap(err, "discount_value")
	}
	if rec[3] != "" {
		if c.MinimumOrderAmount, err = decimal.NewFromString(rec[3]); err != nil {
			return c, errors.Wrap(err, "minimum_order_amount")
		}
	}
	if rec[4] != "" {
		d, err := decimal.NewFromString(rec[4])
		if err != nil {
			return c, errors.Wrap(err, "max_discount_amount")
		}
		c.MaxDiscountAmount = decimal.NewNullDecimal(d)
	}
	if c.ValidFrom, err = parseDate(rec[5]); err != nil {
		return c, errors.Wrap(err, "valid_from")
	}
	if c.ValidUntil, err = parseDate(rec[6]); err != nil {
		return c, errors.Wrap(err, "valid_until")
	}
	if rec[7] != "" {
		n, err := strconv.Atoi(rec[7])
		if err != nil {
			return c, errors.Wrap(err, "usage_limit")
		}
		c.UsageLimit = &n
	}
	return c, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// streamRecords calls fn for every record of path, skipping a header row.
// Files ending in .gz are decompressed.
func streamRecords(ctx context.Context, path string, fn func(line int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var src io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		src = gz
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}
