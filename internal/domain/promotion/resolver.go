package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/aura-scents/internal/domain/catalog"
)

// Best picks the offer with the highest percentage among the currently valid
// product-level and category-level offers. On equal percentages the
// product-level offer wins. It returns nil when nothing is valid.
func Best(productOffers, categoryOffers []Offer, now time.Time) *Offer {
	p := bestOf(productOffers, now)
	c := bestOf(categoryOffers, now)
	switch {
	case p == nil:
		return c
	case c == nil:
		return p
	case c.DiscountPercentage.GreaterThan(p.DiscountPercentage):
		return c
	default:
		return p
	}
}

func bestOf(offers []Offer, now time.Time) *Offer {
	var best *Offer
	for i := range offers {
		o := &offers[i]
		if !o.IsCurrent(now) {
			continue
		}
		if best == nil || o.DiscountPercentage.GreaterThan(best.DiscountPercentage) {
			best = o
		}
	}
	return best
}

// Resolver looks up the best offer for a product.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver returns a Resolver reading offers from repo.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// BestOfferFor returns the best currently valid offer for p, or nil.
func (r *Resolver) BestOfferFor(ctx context.Context, p catalog.Product) (*Offer, error) {
	productOffers, err := r.repo.ListByTarget(ctx, ProductTarget(p.ID))
	if err != nil {
		return nil, errors.Wrapf(err, "list offers for product %d", p.ID)
	}
	categoryOffers, err := r.repo.ListByTarget(ctx, CategoryTarget(p.CategoryID))
	if err != nil {
		return nil, errors.Wrapf(err, "list offers for category %d", p.CategoryID)
	}
	best := Best(productOffers, categoryOffers, r.now())
	if best == nil {
		return nil, nil
	}
	o := *best
	return &o, nil
}
