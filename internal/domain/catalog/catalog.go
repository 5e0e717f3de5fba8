// Package catalog holds the purchasable catalog records: categories,
// products and their volume variants.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// Unit is the measurement unit of a variant volume.
type Unit string

const (
	UnitMilliliter Unit = "ml"
	UnitGram       Unit = "g"
	UnitOunce      Unit = "oz"
)

// Category groups products. Blocked or deleted categories hide all of their
// products from purchase.
type Category struct {
	ID        int64
	Name      string
	IsBlocked bool
	IsDeleted bool
}

// Product is a catalog entry with a base price and stock counter.
type Product struct {
	ID         int64
	CategoryID int64
	Name       string
	Price      decimal.Decimal
	Stock      int
	IsBlocked  bool
	IsDeleted  bool
}

// Variant is a volume of a product. Volume and unit are unique per product.
type Variant struct {
	ID        int64
	ProductID int64
	Volume    decimal.Decimal
	Unit      Unit
	Price     decimal.Decimal
	Stock     int
	IsBlocked bool
	IsDeleted bool
}

// Label renders the variant volume, e.g. "100ml".
func (v Variant) Label() string {
	return v.Volume.String() + string(v.Unit)
}

// Line is a product selection with an optional variant, as found in a cart.
type Line struct {
	Product  Product
	Category Category
	Variant  *Variant
	Quantity int
}

// UnitPrice is the variant price when a variant is selected, else the
// product price.
func (l Line) UnitPrice() decimal.Decimal {
	if l.Variant != nil {
		return l.Variant.Price
	}
	return l.Product.Price
}

// AvailableStock is the stock counter that a purchase of this line draws from.
func (l Line) AvailableStock() int {
	if l.Variant != nil {
		return l.Variant.Stock
	}
	return l.Product.Stock
}

// VariantID returns the selected variant id or nil.
func (l Line) VariantID() *int64 {
	if l.Variant == nil {
		return nil
	}
	id := l.Variant.ID
	return &id
}

// Purchasable reports whether nothing along the line is blocked or deleted.
func (l Line) Purchasable() bool {
	if l.Product.IsBlocked || l.Product.IsDeleted {
		return false
	}
	if l.Category.IsBlocked || l.Category.IsDeleted {
		return false
	}
	if l.Variant != nil && (l.Variant.IsBlocked || l.Variant.IsDeleted) {
		return false
	}
	return true
}

// DisplayName is the product name with the variant volume appended.
func (l Line) DisplayName() string {
	if l.Variant == nil {
		return l.Product.Name
	}
	return fmt.Sprintf("%s (%s)", l.Product.Name, l.Variant.Label())
}

// Repository provides read access to catalog records.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	GetVariant(ctx context.Context, id int64) (*Variant, error)
}
