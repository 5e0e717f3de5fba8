package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/aura-scents/internal/domain/catalog"
)

const (
	getProductSQL = `SELECT id, category_id, name, price, stock, is_blocked, is_deleted
		FROM products WHERE id = $1`

	getCategorySQL = `SELECT id, name, is_blocked, is_deleted
		FROM categories WHERE id = $1`

	getVariantSQL = `SELECT id, product_id, volume, unit, price, stock, is_blocked, is_deleted
		FROM product_variants WHERE id = $1`

	upsertCategorySQL = `INSERT INTO categories (name, is_blocked, is_deleted)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET is_blocked = EXCLUDED.is_blocked, is_deleted = EXCLUDED.is_deleted
		RETURNING id`

	upsertProductSQL = `INSERT INTO products (category_id, name, price, stock, is_blocked, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (category_id, name) DO UPDATE SET price = EXCLUDED.price, stock = EXCLUDED.stock,
			is_blocked = EXCLUDED.is_blocked, is_deleted = EXCLUDED.is_deleted
		RETURNING id`

	upsertVariantSQL = `INSERT INTO product_variants (product_id, volume, unit, price, stock, is_blocked, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id, volume, unit) DO UPDATE SET price = EXCLUDED.price, stock = EXCLUDED.stock,
			is_blocked = EXCLUDED.is_blocked, is_deleted = EXCLUDED.is_deleted
		RETURNING id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository reads products, categories and variants.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct returns catalog.ErrProductNotFound for unknown ids.
func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	var p catalog.Product
	err := conn(ctx, r.pool).QueryRow(ctx, getProductSQL, id).Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.Stock, &p.IsBlocked, &p.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

func (r *CatalogRepository) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	var c catalog.Category
	err := conn(ctx, r.pool).QueryRow(ctx, getCategorySQL, id).Scan(
		&c.ID, &c.Name, &c.IsBlocked, &c.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	return &c, nil
}

func (r *CatalogRepository) GetVariant(ctx context.Context, id int64) (*catalog.Variant, error) {
	var (
		v    catalog.Variant
		unit string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, getVariantSQL, id).Scan(
		&v.ID, &v.ProductID, &v.Volume, &unit, &v.Price, &v.Stock, &v.IsBlocked, &v.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrVariantNotFound
		}
		return nil, fmt.Errorf("getting variant %d: %w", id, err)
	}
	v.Unit = catalog.Unit(unit)
	return &v, nil
}

// UpsertCategory inserts c or updates the category with the same name, and
// sets c.ID.
func (r *CatalogRepository) UpsertCategory(ctx context.Context, c *catalog.Category) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertCategorySQL, c.Name, c.IsBlocked, c.IsDeleted).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("upserting category %q: %w", c.Name, err)
	}
	return nil
}

// UpsertProduct keys products by category and name, and sets p.ID.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertProductSQL,
		p.CategoryID, p.Name, p.Price, p.Stock, p.IsBlocked, p.IsDeleted,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.Name, err)
	}
	return nil
}

// UpsertVariant keys variants by product, volume and unit, and sets v.ID.
func (r *CatalogRepository) UpsertVariant(ctx context.Context, v *catalog.Variant) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertVariantSQL,
		v.ProductID, v.Volume, string(v.Unit), v.Price, v.Stock, v.IsBlocked, v.IsDeleted,
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("upserting variant of product %d: %w", v.ProductID, err)
	}
	return nil
}
