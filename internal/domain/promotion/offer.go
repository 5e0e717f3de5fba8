// Package promotion resolves time-bounded percentage offers attached to a
// product or a category.
package promotion

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("offer not found")
	ErrInvalidTarget = errors.New("invalid offer target")
)

var hundred = decimal.NewFromInt(100)

// TargetKind tells what an offer is attached to.
type TargetKind string

const (
	TargetProduct  TargetKind = "product"
	TargetCategory TargetKind = "category"
)

// Target is the single attachment of an offer: one product or one category.
type Target struct {
	Kind TargetKind
	ID   int64
}

// ParseTargetKind converts an offer_type value to a TargetKind.
func ParseTargetKind(s string) (TargetKind, error) {
	switch k := TargetKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TargetProduct, TargetCategory:
		return k, nil
	default:
		return "", errors.Wrapf(ErrInvalidTarget, "offer type %q", s)
	}
}

// ProductTarget attaches an offer to a product.
func ProductTarget(productID int64) Target {
	return Target{Kind: TargetProduct, ID: productID}
}

// CategoryTarget attaches an offer to a category.
func CategoryTarget(categoryID int64) Target {
	return Target{Kind: TargetCategory, ID: categoryID}
}

// Offer is a percentage discount valid in [StartDate, EndDate).
type Offer struct {
	ID                 int64
	Name               string
	Target             Target
	DiscountPercentage decimal.Decimal
	StartDate          time.Time
	EndDate            time.Time
	IsActive           bool
}

// ValidationError names the offer field that violates a constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the offer invariants.
func (o *Offer) Validate() error {
	switch {
	case strings.TrimSpace(o.Name) == "":
		return &ValidationError{Field: "name", Message: "name is required"}
	case o.Target.Kind != TargetProduct && o.Target.Kind != TargetCategory:
		return &ValidationError{Field: "offer_type", Message: "must be product or category"}
	case o.Target.ID <= 0:
		return &ValidationError{Field: string(o.Target.Kind), Message: "target is required"}
	case o.DiscountPercentage.IsNegative() || o.DiscountPercentage.GreaterThan(hundred):
		return &ValidationError{Field: "discount_percentage", Message: "must be between 0 and 100"}
	case !o.EndDate.After(o.StartDate):
		return &ValidationError{Field: "end_date", Message: "must be after start date"}
	}
	return nil
}

// IsCurrent reports whether the offer is active and now falls in its window.
func (o *Offer) IsCurrent(now time.Time) bool {
	return o.IsActive && !now.Before(o.StartDate) && now.Before(o.EndDate)
}

// DiscountedPrice applies the offer percentage to price. A nil offer leaves
// the price unchanged.
func DiscountedPrice(price decimal.Decimal, o *Offer) decimal.Decimal {
	if o == nil {
		return price
	}
	factor := hundred.Sub(o.DiscountPercentage).Div(hundred)
	return price.Mul(factor).Round(2)
}

// Repository stores offers.
type Repository interface {
	Get(ctx context.Context, id int64) (*Offer, error)
	ListByTarget(ctx context.Context, target Target) ([]Offer, error)
	Create(ctx context.Context, o *Offer) error
	Update(ctx context.Context, o *Offer) error
}
