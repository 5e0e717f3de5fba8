package couponimport

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/aura-scents/internal/domain/coupon"
)

type fakeStore struct {
	mu       sync.Mutex
	existing map[string]bool
	inserted []coupon.Coupon
	batches  int
}

func (s *fakeStore) InsertMissing(_ context.Context, coupons []coupon.Coupon) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	n := 0
	for _, c := range coupons {
		if s.existing[c.Code] {
			continue
		}
		s.inserted = append(s.inserted, c)
		n++
	}
	return n, nil
}

func (s *fakeStore) codes() []string {
	out := make([]string, 0, len(s.inserted))
	for _, c := range s.inserted {
		out = append(out, c.Code)
	}
	slices.Sort(out)
	return out
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := strings.Join(lines, "\n") + "\n"
	if !strings.HasSuffix(name, ".gz") {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv.gz",
		"code,discount_type,discount_value,minimum_order_amount,max_discount_amount,valid_from,valid_until,usage_limit",
		"WELCOME10,percentage,10,500,300,2025-01-01,2026-01-01,",
		"FLAT50,fixed,50,0,,2025-01-01,2026-01-01,10",
		"BAD!,fixed,50,0,,2025-01-01,2026-01-01,",
		"SHARED1,percentage,5,0,,2025-01-01,2026-01-01,",
		"CLASH,fixed,20,0,,2025-01-01,2026-01-01,",
		"FLAT50,fixed,50,0,,2025-01-01,2026-01-01,10",
	)
	b := writeFile(t, dir, "b.csv",
		"shared1,percentage,5,0,,2025-01-01T00:00:00Z,2026-01-01,",
		"CLASH,fixed,25,0,,2025-01-01,2026-01-01,",
		"OLD1,fixed,10,0,,2025-01-01,2026-01-01,",
		"NOPE,fixed,abc,0,,2025-01-01,2026-01-01,",
		"short,row",
	)

	store := &fakeStore{existing: map[string]bool{"OLD1": true}}
	imp := New(store, nil, Options{BatchSize: 2, Capacity: 1000, FPR: 0.0001})

	stats, err := imp.Import(context.Background(), []string{a, b})
	require.NoError(t, err)

	assert.Equal(t, Stats{
		Rows:       11,
		Invalid:    3,
		Duplicates: 2,
		Conflicts:  1,
		Inserted:   3,
		Existing:   1,
	}, stats)
	assert.Equal(t, []string{"FLAT50", "SHARED1", "WELCOME10"}, store.codes())
	assert.Equal(t, 2, store.batches)

	for _, c := range store.inserted {
		if c.Code != "WELCOME10" {
			continue
		}
		assert.Equal(t, coupon.TypePercentage, c.Type)
		assert.True(t, c.MaxDiscountAmount.Valid)
		assert.True(t, decimal.NewFromInt(300).Equal(c.MaxDiscountAmount.Decimal))
		assert.Nil(t, c.UsageLimit)
		assert.True(t, c.IsActive)
	}
}

func TestImportMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "OK1,fixed,10,0,,2025-01-01,2026-01-01,")

	store := &fakeStore{}
	_, err := New(store, nil, Options{}).Import(context.Background(), []string{a, filepath.Join(dir, "missing.csv.gz")})

	require.Error(t, err)
	assert.Zero(t, store.batches)
}

func TestParseRecord(t *testing.T) {
	limit := 5
	tests := []struct {
		name string
		rec  []string
		want coupon.Coupon
		err  string
	}{
		{
			name: "full",
			rec:  []string{" spring5 ", "Percentage", "5", "100", "50", "2025-03-01T00:00:00Z", "2025-04-01", "5"},
			want: coupon.Coupon{
				Code:               "SPRING5",
				Type:               coupon.TypePercentage,
				DiscountValue:      decimal.NewFromInt(5),
				MinimumOrderAmount: decimal.NewFromInt(100),
				MaxDiscountAmount:  decimal.NewNullDecimal(decimal.NewFromInt(50)),
				ValidFrom:          time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
				ValidUntil:         time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
				UsageLimit:         &limit,
				IsActive:           true,
			},
		},
		{name: "columns", rec: []string{"A", "fixed"}, err: "want 8 columns, got 2"},
		{name: "value", rec: []string{"A", "fixed", "x", "", "", "2025-01-01", "2025-02-01", ""}, err: "discount_value"},
		{name: "date", rec: []string{"A", "fixed", "1", "", "", "tomorrow", "2025-02-01", ""}, err: "valid_from"},
		{name: "limit", rec: []string{"A", "fixed", "1", "", "", "2025-01-01", "2025-02-01", "many"}, err: "usage_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord(tt.rec)
			if tt.err != "" {
				assert.ErrorContains(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Code, got.Code)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.True(t, tt.want.DiscountValue.Equal(got.DiscountValue))
			assert.True(t, tt.want.MinimumOrderAmount.Equal(got.MinimumOrderAmount))
			assert.True(t, tt.want.MaxDiscountAmount.Decimal.Equal(got.MaxDiscountAmount.Decimal))
			assert.True(t, tt.want.ValidFrom.Equal(got.ValidFrom))
			assert.True(t, tt.want.ValidUntil.Equal(got.ValidUntil))
			assert.Equal(t, tt.want.UsageLimit, got.UsageLimit)
			assert.True(t, got.IsActive)
		})
	}
}
