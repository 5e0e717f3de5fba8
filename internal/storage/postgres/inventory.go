package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/aura-scents/internal/domain/catalog"
	"github.com/xenking/aura-scents/internal/domain/order"
)

// Stock changes are conditional single-statement updates, so two checkouts
// racing for the last units cannot both succeed.
const (
	reserveProductSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	reserveVariantSQL = `UPDATE product_variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	restockProductSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	restockVariantSQL = `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`

	productStockSQL = `SELECT stock FROM products WHERE id = $1`

	variantStockSQL = `SELECT stock FROM product_variants WHERE id = $1`
)

var _ order.Inventory = (*InventoryRepository)(nil)

// InventoryRepository mutates product and variant stock counters.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given
// pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Reserve decrements stock when at least quantity units are left.
func (r *InventoryRepository) Reserve(ctx context.Context, productID int64, variantID *int64, quantity int) (bool, error) {
	query, id := reserveProductSQL, productID
	if variantID != nil {
		query, id = reserveVariantSQL, *variantID
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, quantity)
	if err != nil {
		return false, fmt.Errorf("reserving %d units of product %d: %w", quantity, productID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *InventoryRepository) Restock(ctx context.Context, productID int64, variantID *int64, quantity int) error {
	query, id := restockProductSQL, productID
	if variantID != nil {
		query, id = restockVariantSQL, *variantID
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("restocking product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		if variantID != nil {
			return catalog.ErrVariantNotFound
		}
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *InventoryRepository) Available(ctx context.Context, productID int64, variantID *int64) (int, error) {
	query, id := productStockSQL, productID
	if variantID != nil {
		query, id = variantStockSQL, *variantID
	}
	var stock int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading stock of product %d: %w", productID, err)
	}
	return stock, nil
}
