package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/aura-scents/internal/domain/catalog"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func offer(id int64, target Target, pct string) Offer {
	return Offer{
		ID:                 id,
		Name:               "offer",
		Target:             target,
		DiscountPercentage: d(pct),
		StartDate:          fixedNow.Add(-24 * time.Hour),
		EndDate:            fixedNow.Add(24 * time.Hour),
		IsActive:           true,
	}
}

type memRepo struct {
	offers []Offer
}

func (m *memRepo) Get(_ context.Context, id int64) (*Offer, error) {
	for i := range m.offers {
		if m.offers[i].ID == id {
			o := m.offers[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) ListByTarget(_ context.Context, target Target) ([]Offer, error) {
	var out []Offer
	for _, o := range m.offers {
		if o.Target == target {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, o *Offer) error {
	o.ID = int64(len(m.offers) + 1)
	m.offers = append(m.offers, *o)
	return nil
}

func (m *memRepo) Update(_ context.Context, o *Offer) error {
	for i := range m.offers {
		if m.offers[i].ID == o.ID {
			m.offers[i] = *o
			return nil
		}
	}
	return ErrNotFound
}

func TestBest(t *testing.T) {
	expired := offer(9, ProductTarget(1), "50")
	expired.EndDate = fixedNow

	inactive := offer(8, CategoryTarget(2), "60")
	inactive.IsActive = false

	notStarted := offer(7, ProductTarget(1), "70")
	notStarted.StartDate = fixedNow.Add(time.Second)

	tests := []struct {
		name     string
		product  []Offer
		category []Offer
		wantID   int64
	}{
		{
			name:     "product offer higher than category",
			product:  []Offer{offer(1, ProductTarget(1), "20")},
			category: []Offer{offer(2, CategoryTarget(2), "15")},
			wantID:   1,
		},
		{
			name:     "category offer higher than product",
			product:  []Offer{offer(1, ProductTarget(1), "10")},
			category: []Offer{offer(2, CategoryTarget(2), "25")},
			wantID:   2,
		},
		{
			name:     "tie goes to product offer",
			product:  []Offer{offer(1, ProductTarget(1), "15")},
			category: []Offer{offer(2, CategoryTarget(2), "15")},
			wantID:   1,
		},
		{
			name:     "falls back to category offer",
			category: []Offer{offer(2, CategoryTarget(2), "5")},
			wantID:   2,
		},
		{
			name:     "expired product offer ignored",
			product:  []Offer{expired},
			category: []Offer{offer(2, CategoryTarget(2), "5")},
			wantID:   2,
		},
		{
			name:     "inactive and future offers ignored",
			product:  []Offer{notStarted},
			category: []Offer{inactive},
			wantID:   0,
		},
		{
			name:   "no offers",
			wantID: 0,
		},
		{
			name:    "highest of several product offers",
			product: []Offer{offer(1, ProductTarget(1), "5"), offer(3, ProductTarget(1), "30")},
			wantID:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Best(tt.product, tt.category, fixedNow)
			if tt.wantID == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestIsCurrent_WindowBoundaries(t *testing.T) {
	o := offer(1, ProductTarget(1), "10")
	o.StartDate = fixedNow
	o.EndDate = fixedNow.Add(time.Hour)

	assert.True(t, o.IsCurrent(fixedNow), "start is inclusive")
	assert.False(t, o.IsCurrent(fixedNow.Add(time.Hour)), "end is exclusive")
	assert.False(t, o.IsCurrent(fixedNow.Add(-time.Nanosecond)))
}

func TestDiscountedPrice(t *testing.T) {
	o := offer(1, ProductTarget(1), "20")
	assert.True(t, d("400").Equal(DiscountedPrice(d("500"), &o)))
	assert.True(t, d("500").Equal(DiscountedPrice(d("500"), nil)))

	odd := offer(2, ProductTarget(1), "33")
	assert.True(t, d("6.69").Equal(DiscountedPrice(d("9.99"), &odd)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(o *Offer)
		wantField string
	}{
		{name: "valid", mutate: func(*Offer) {}},
		{name: "empty name", mutate: func(o *Offer) { o.Name = " " }, wantField: "name"},
		{name: "unknown kind", mutate: func(o *Offer) { o.Target.Kind = "brand" }, wantField: "offer_type"},
		{name: "missing target", mutate: func(o *Offer) { o.Target.ID = 0 }, wantField: "product"},
		{name: "over 100", mutate: func(o *Offer) { o.DiscountPercentage = d("100.01") }, wantField: "discount_percentage"},
		{name: "negative", mutate: func(o *Offer) { o.DiscountPercentage = d("-1") }, wantField: "discount_percentage"},
		{name: "end before start", mutate: func(o *Offer) { o.EndDate = o.StartDate }, wantField: "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := offer(1, ProductTarget(1), "10")
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestResolver_BestOfferFor(t *testing.T) {
	repo := &memRepo{offers: []Offer{
		offer(1, ProductTarget(10), "20"),
		offer(2, CategoryTarget(5), "15"),
		offer(3, CategoryTarget(6), "90"),
	}}
	r := NewResolver(repo)
	r.now = func() time.Time { return fixedNow }

	got, err := r.BestOfferFor(context.Background(), catalog.Product{ID: 10, CategoryID: 5})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	got, err = r.BestOfferFor(context.Background(), catalog.Product{ID: 11, CategoryID: 7})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestService_UpdateSwitchesTarget(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), offer(0, ProductTarget(10), "20"))
	require.NoError(t, err)

	created.Target = CategoryTarget(5)
	_, err = svc.Update(context.Background(), *created)
	require.NoError(t, err)

	byProduct, _ := repo.ListByTarget(context.Background(), ProductTarget(10))
	byCategory, _ := repo.ListByTarget(context.Background(), CategoryTarget(5))
	assert.Empty(t, byProduct)
	assert.Len(t, byCategory, 1)
}

func TestParseTargetKind(t *testing.T) {
	k, err := ParseTargetKind(" Category ")
	require.NoError(t, err)
	assert.Equal(t, TargetCategory, k)

	_, err = ParseTargetKind("brand")
	require.ErrorIs(t, err, ErrInvalidTarget)
}
