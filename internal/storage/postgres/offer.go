package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/aura-scents/internal/domain/promotion"
)

const offerColumns = `id, name, target_kind, COALESCE(product_id, category_id),
	discount_percentage, start_date, end_date, is_active`

const (
	getOfferSQL = `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	listProductOffersSQL = `SELECT ` + offerColumns + `
		FROM offers WHERE target_kind = 'product' AND product_id = $1 AND is_active
		ORDER BY id`

	listCategoryOffersSQL = `SELECT ` + offerColumns + `
		FROM offers WHERE target_kind = 'category' AND category_id = $1 AND is_active
		ORDER BY id`

	createOfferSQL = `INSERT INTO offers (name, target_kind, product_id, category_id,
		discount_percentage, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	// The target columns are rewritten together, so switching the kind
	// leaves no stale attachment behind.
	updateOfferSQL = `UPDATE offers SET name = $2, target_kind = $3, product_id = $4,
		category_id = $5, discount_percentage = $6, start_date = $7, end_date = $8,
		is_active = $9
		WHERE id = $1`
)

var _ promotion.Repository = (*OfferRepository)(nil)

// OfferRepository stores offers with their product or category target.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

func (r *OfferRepository) Get(ctx context.Context, id int64) (*promotion.Offer, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getOfferSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting offer %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOffer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("getting offer %d: %w", id, err)
	}
	return &o, nil
}

// ListByTarget returns the active offers attached to target. Validity
// windows are checked by the caller against its clock.
func (r *OfferRepository) ListByTarget(ctx context.Context, target promotion.Target) ([]promotion.Offer, error) {
	query := listProductOffersSQL
	if target.Kind == promotion.TargetCategory {
		query = listCategoryOffersSQL
	}
	rows, err := conn(ctx, r.pool).Query(ctx, query, target.ID)
	if err != nil {
		return nil, fmt.Errorf("listing %s offers for %d: %w", target.Kind, target.ID, err)
	}
	offers, err := pgx.CollectRows(rows, scanOffer)
	if err != nil {
		return nil, fmt.Errorf("listing %s offers for %d: %w", target.Kind, target.ID, err)
	}
	return offers, nil
}

func (r *OfferRepository) Create(ctx context.Context, o *promotion.Offer) error {
	productID, categoryID := targetColumns(o.Target)
	err := conn(ctx, r.pool).QueryRow(ctx, createOfferSQL,
		o.Name, string(o.Target.Kind), productID, categoryID,
		o.DiscountPercentage, o.StartDate, o.EndDate, o.IsActive,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("creating offer %q: %w", o.Name, err)
	}
	return nil
}

func (r *OfferRepository) Update(ctx context.Context, o *promotion.Offer) error {
	productID, categoryID := targetColumns(o.Target)
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOfferSQL,
		o.ID, o.Name, string(o.Target.Kind), productID, categoryID,
		o.DiscountPercentage, o.StartDate, o.EndDate, o.IsActive,
	)
	if err != nil {
		return fmt.Errorf("updating offer %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func targetColumns(t promotion.Target) (productID, categoryID *int64) {
	id := t.ID
	if t.Kind == promotion.TargetCategory {
		return nil, &id
	}
	return &id, nil
}

func scanOffer(row pgx.CollectableRow) (promotion.Offer, error) {
	var (
		o    promotion.Offer
		kind string
	)
	err := row.Scan(
		&o.ID, &o.Name, &kind, &o.Target.ID,
		&o.DiscountPercentage, &o.StartDate, &o.EndDate, &o.IsActive,
	)
	o.Target.Kind = promotion.TargetKind(kind)
	return o, err
}
