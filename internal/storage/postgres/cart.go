package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/catalog"
)

const (
	listCartItemsSQL = `SELECT ci.id, ci.quantity,
			p.id, p.category_id, p.name, p.price, p.stock, p.is_blocked, p.is_deleted,
			c.id, c.name, c.is_blocked, c.is_deleted,
			v.id, v.volume, v.unit, v.price, v.stock, v.is_blocked, v.is_deleted
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id
		LEFT JOIN product_variants v ON v.id = ci.variant_id
		WHERE ci.user_id = $1
		ORDER BY ci.id`

	addCartItemSQL = `INSERT INTO cart_items (user_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, COALESCE(variant_id, 0))
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	setCartQuantitySQL = `UPDATE cart_items SET quantity = $3 WHERE id = $2 AND user_id = $1`

	removeCartItemSQL = `DELETE FROM cart_items WHERE id = $2 AND user_id = $1`

	removeCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository stores cart lines, one row per (user, product, variant).
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Items returns the user's lines with their product, category and variant.
func (r *CartRepository) Items(ctx context.Context, userID int64) ([]cart.Item, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of user %d: %w", userID, err)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart of user %d: %w", userID, err)
	}
	return items, nil
}

// Add inserts a line or adds quantity to the existing one.
func (r *CartRepository) Add(ctx context.Context, userID, productID int64, variantID *int64, quantity int) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, addCartItemSQL, userID, productID, variantID, quantity); err != nil {
		return fmt.Errorf("adding product %d to cart: %w", productID, err)
	}
	return nil
}

func (r *CartRepository) SetQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, setCartQuantitySQL, userID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func (r *CartRepository) Remove(ctx context.Context, userID, itemID int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, removeCartItemSQL, userID, itemID)
	if err != nil {
		return fmt.Errorf("removing cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

func (r *CartRepository) RemoveItems(ctx context.Context, userID int64, itemIDs []int64) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, removeCartItemsSQL, userID, itemIDs); err != nil {
		return fmt.Errorf("removing cart items: %w", err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of user %d: %w", userID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it cart.Item

		variantID      *int64
		variantVolume  decimal.NullDecimal
		variantUnit    *string
		variantPrice   decimal.NullDecimal
		variantStock   *int
		variantBlocked *bool
		variantDeleted *bool
	)
	p, c := &it.Product, &it.Category
	err := row.Scan(
		&it.ID, &it.Quantity,
		&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.Stock, &p.IsBlocked, &p.IsDeleted,
		&c.ID, &c.Name, &c.IsBlocked, &c.IsDeleted,
		&variantID, &variantVolume, &variantUnit, &variantPrice, &variantStock, &variantBlocked, &variantDeleted,
	)
	if err != nil {
		return it, err
	}
	if variantID != nil {
		it.Variant = &catalog.Variant{
			ID:        *variantID,
			ProductID: p.ID,
			Volume:    variantVolume.Decimal,
			Unit:      catalog.Unit(*variantUnit),
			Price:     variantPrice.Decimal,
			Stock:     *variantStock,
			IsBlocked: *variantBlocked,
			IsDeleted: *variantDeleted,
		}
	}
	return it, nil
}
