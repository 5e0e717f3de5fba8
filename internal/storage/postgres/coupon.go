package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/aura-scents/internal/domain/coupon"
)

const couponColumns = `id, code, discount_type, discount_value, minimum_order_amount,
	max_discount_amount, valid_from, valid_until, usage_limit, usage_count, is_active`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	getCouponByCodeForUpdateSQL = getCouponByCodeSQL + ` FOR UPDATE`

	createCouponSQL = `INSERT INTO coupons (code, discount_type, discount_value, minimum_order_amount,
		max_discount_amount, valid_from, valid_until, usage_limit, usage_count, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	updateCouponSQL = `UPDATE coupons SET discount_type = $2, discount_value = $3,
		minimum_order_amount = $4, max_discount_amount = $5, valid_from = $6,
		valid_until = $7, usage_limit = $8, is_active = $9
		WHERE id = $1`

	insertMissingCouponSQL = `INSERT INTO coupons (code, discount_type, discount_value, minimum_order_amount,
		max_discount_amount, valid_from, valid_until, usage_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO NOTHING`

	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its normalized code, active or not.
// Returns coupon.ErrNotFound when no coupon has that code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.find(ctx, getCouponByCodeSQL, code)
}

// FindByCodeForUpdate is FindByCode with a row lock held until the
// surrounding transaction ends.
func (r *CouponRepository) FindByCodeForUpdate(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.find(ctx, getCouponByCodeForUpdateSQL, code)
}

func (r *CouponRepository) find(ctx context.Context, query, code string) (*coupon.Coupon, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Create inserts c and sets its ID. A taken code returns coupon.ErrCodeTaken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createCouponSQL,
		c.Code, string(c.Type), c.DiscountValue, c.MinimumOrderAmount,
		c.MaxDiscountAmount, c.ValidFrom, c.ValidUntil, c.UsageLimit, c.UsageCount, c.IsActive,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeTaken
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update rewrites every column except code and usage_count.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateCouponSQL,
		c.ID, string(c.Type), c.DiscountValue, c.MinimumOrderAmount,
		c.MaxDiscountAmount, c.ValidFrom, c.ValidUntil, c.UsageLimit, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// InsertMissing inserts the coupons in one batch, skipping codes that
// already exist, and returns how many rows were inserted.
func (r *CouponRepository) InsertMissing(ctx context.Context, coupons []coupon.Coupon) (int, error) {
	if len(coupons) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(insertMissingCouponSQL,
			c.Code, string(c.Type), c.DiscountValue, c.MinimumOrderAmount,
			c.MaxDiscountAmount, c.ValidFrom, c.ValidUntil, c.UsageLimit, c.IsActive,
		)
	}

	br := conn(ctx, r.pool).SendBatch(ctx, batch)
	inserted := 0
	for _, c := range coupons {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return inserted, fmt.Errorf("inserting coupon %q: %w", c.Code, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return inserted, fmt.Errorf("closing coupon batch: %w", err)
	}
	return inserted, nil
}

// IncrementUsage consumes one use unless the limit is reached.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage of coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &c.DiscountValue, &c.MinimumOrderAmount,
		&c.MaxDiscountAmount, &c.ValidFrom, &c.ValidUntil, &c.UsageLimit, &c.UsageCount, &c.IsActive,
	)
	c.Type = coupon.Type(discountType)
	return c, err
}
