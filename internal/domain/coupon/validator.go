package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Service administers coupons and redeems them at checkout.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates and stores a new coupon. A duplicate code is reported as
// a validation error on the code field.
func (s *Service) Create(ctx context.Context, c Coupon) (*Coupon, error) {
	c.Code = NormalizeCode(c.Code)
	c.UsageCount = 0
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		if errors.Is(err, ErrCodeTaken) {
			return nil, &ValidationError{Field: "code", Message: "code already exists"}
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return &c, nil
}

// Update validates and replaces an existing coupon, keeping its usage count.
func (s *Service) Update(ctx context.Context, c Coupon) (*Coupon, error) {
	existing, err := s.repo.FindByCode(ctx, NormalizeCode(c.Code))
	if err != nil {
		return nil, err
	}
	c.ID = existing.ID
	c.Code = existing.Code
	c.UsageCount = existing.UsageCount
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &c); err != nil {
		return nil, errors.Wrapf(err, "update coupon %s", c.Code)
	}
	return &c, nil
}

// Redeem locks the coupon, checks it applies to subtotal and consumes one use.
// It must run inside a transaction so the usage increment and the order
// referencing the coupon commit together.
func (s *Service) Redeem(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, decimal.Decimal, error) {
	code = NormalizeCode(code)
	c, err := s.repo.FindByCodeForUpdate(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, decimal.Zero, &NotApplicableError{Code: code, Reason: "invalid coupon code"}
		}
		return nil, decimal.Zero, errors.Wrapf(err, "find coupon %s", code)
	}

	now := s.now()
	if err := c.CheckApplicable(subtotal, now); err != nil {
		return nil, decimal.Zero, err
	}
	amount := c.ApplyDiscount(subtotal, now)

	if err := s.repo.IncrementUsage(ctx, c.ID); err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			return nil, decimal.Zero, &NotApplicableError{Code: code, Reason: "coupon usage limit reached"}
		}
		return nil, decimal.Zero, errors.Wrapf(err, "increment usage for coupon %s", code)
	}
	c.UsageCount++
	return c, amount, nil
}
