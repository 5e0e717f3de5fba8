// Package cart manages the per-user pre-order basket and prices it for
// display.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/catalog"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/domain/promotion"
)

var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrUnavailable     = errors.New("product is not available")
	ErrVariantMismatch = errors.New("variant does not belong to product")
)

// ExceedsStockError is returned when the requested quantity is more than the
// line's available stock.
type ExceedsStockError struct {
	ProductName string
	Available   int
}

func (e *ExceedsStockError) Error() string {
	return fmt.Sprintf("only %d of %s available", e.Available, e.ProductName)
}

// Item is a stored cart line.
type Item struct {
	ID int64
	catalog.Line
}

// Repository stores cart lines. Lines are unique per (user, product, variant).
type Repository interface {
	Items(ctx context.Context, userID int64) ([]Item, error)
	// Add inserts a line or increases the quantity of the matching line.
	Add(ctx context.Context, userID, productID int64, variantID *int64, quantity int) error
	SetQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	Remove(ctx context.Context, userID, itemID int64) error
	RemoveItems(ctx context.Context, userID int64, itemIDs []int64) error
	Clear(ctx context.Context, userID int64) error
}

// OfferResolver finds the best promotional offer for a product.
type OfferResolver interface {
	BestOfferFor(ctx context.Context, p catalog.Product) (*promotion.Offer, error)
}

// CouponFinder looks coupons up without redeeming them.
type CouponFinder interface {
	FindByCode(ctx context.Context, code string) (*coupon.Coupon, error)
}

// ViewLine is a cart line with prices for display.
type ViewLine struct {
	Item
	UnitPrice        decimal.Decimal
	DisplayUnitPrice decimal.Decimal
	LineTotal        decimal.Decimal
	Offer            *promotion.Offer
}

// View is the priced content of a cart.
type View struct {
	Lines     []ViewLine
	Breakdown pricing.Breakdown
	// CouponError explains why a previewed coupon does not apply.
	CouponError string
}

// Service implements cart operations.
type Service struct {
	repo    Repository
	catalog catalog.Repository
	offers  OfferResolver
	coupons CouponFinder
	engine  *pricing.Engine
	lg      *zap.Logger
	now     func() time.Time
}

// NewService creates a cart Service.
func NewService(
	repo Repository,
	cat catalog.Repository,
	offers OfferResolver,
	coupons CouponFinder,
	engine *pricing.Engine,
	lg *zap.Logger,
) *Service {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		catalog: cat,
		offers:  offers,
		coupons: coupons,
		engine:  engine,
		lg:      lg,
		now:     time.Now,
	}
}

// Add puts quantity units of a product (or one of its variants) into the
// user's cart.
func (s *Service) Add(ctx context.Context, userID, productID int64, variantID *int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	line, err := s.resolveLine(ctx, productID, variantID)
	if err != nil {
		return err
	}
	if !line.Purchasable() {
		return ErrUnavailable
	}

	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	total := quantity
	for _, it := range items {
		if it.Product.ID == productID && sameVariant(it.VariantID(), variantID) {
			total += it.Quantity
		}
	}
	if total > line.AvailableStock() {
		return &ExceedsStockError{ProductName: line.DisplayName(), Available: line.AvailableStock()}
	}

	if err := s.repo.Add(ctx, userID, productID, variantID, quantity); err != nil {
		return errors.Wrap(err, "add cart item")
	}
	return nil
}

// UpdateQuantity sets the quantity of an existing line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	for _, it := range items {
		if it.ID != itemID {
			continue
		}
		if quantity > it.AvailableStock() {
			return &ExceedsStockError{ProductName: it.DisplayName(), Available: it.AvailableStock()}
		}
		return s.repo.SetQuantity(ctx, userID, itemID, quantity)
	}
	return ErrItemNotFound
}

// Remove deletes one line.
func (s *Service) Remove(ctx context.Context, userID, itemID int64) error {
	return s.repo.Remove(ctx, userID, itemID)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	return s.repo.Clear(ctx, userID)
}

// View prices the cart. When couponCode is set the coupon is previewed
// without being redeemed.
func (s *Service) View(ctx context.Context, userID int64, couponCode string) (*View, error) {
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	view := &View{Lines: make([]ViewLine, 0, len(items))}
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		if !it.Purchasable() {
			s.lg.Debug("Skipping unavailable cart line",
				zap.Int64("user_id", userID),
				zap.Int64("item_id", it.ID),
			)
			continue
		}
		offer, err := s.offers.BestOfferFor(ctx, it.Product)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve offer for product %d", it.Product.ID)
		}
		pl := pricing.Line{UnitPrice: it.UnitPrice(), Quantity: it.Quantity, Offer: offer}
		lines = append(lines, pl)
		view.Lines = append(view.Lines, ViewLine{
			Item:             it,
			UnitPrice:        pl.UnitPrice,
			DisplayUnitPrice: s.engine.DisplayUnitPrice(pl),
			LineTotal:        pl.Total(),
			Offer:            offer,
		})
	}

	var c *coupon.Coupon
	if code := coupon.NormalizeCode(couponCode); code != "" {
		found, err := s.coupons.FindByCode(ctx, code)
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			view.CouponError = "invalid coupon code"
		case err != nil:
			return nil, errors.Wrapf(err, "find coupon %s", code)
		default:
			if err := found.CheckApplicable(pricing.Subtotal(lines), s.now()); err != nil {
				view.CouponError = err.Error()
			} else {
				c = found
			}
		}
	}

	view.Breakdown = s.engine.Price(lines, c)
	return view, nil
}

func (s *Service) resolveLine(ctx context.Context, productID int64, variantID *int64) (catalog.Line, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return catalog.Line{}, err
	}
	cat, err := s.catalog.GetCategory(ctx, p.CategoryID)
	if err != nil {
		return catalog.Line{}, err
	}
	line := catalog.Line{Product: *p, Category: *cat}
	if variantID != nil {
		v, err := s.catalog.GetVariant(ctx, *variantID)
		if err != nil {
			return catalog.Line{}, err
		}
		if v.ProductID != p.ID {
			return catalog.Line{}, ErrVariantMismatch
		}
		line.Variant = v
	}
	return line, nil
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
