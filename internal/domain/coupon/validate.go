package coupon

import "github.com/shopspring/decimal"

// ValidationError names the coupon field that violates a constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

const maxCodeLen = 50

// Validate checks the coupon invariants and reports the first violated field.
func (c *Coupon) Validate() error {
	if err := validateCode(c.Code); err != nil {
		return err
	}
	switch c.Type {
	case TypePercentage:
		if c.DiscountValue.IsNegative() || c.DiscountValue.GreaterThan(hundred) {
			return &ValidationError{Field: "discount_value", Message: "percentage must be between 0 and 100"}
		}
	case TypeFixed:
		if !c.DiscountValue.IsPositive() {
			return &ValidationError{Field: "discount_value", Message: "fixed discount must be greater than 0"}
		}
		if c.MaxDiscountAmount.Valid {
			return &ValidationError{Field: "max_discount_amount", Message: "only percentage coupons can set a maximum discount"}
		}
	default:
		return &ValidationError{Field: "discount_type", Message: "must be percentage or fixed"}
	}
	if c.MinimumOrderAmount.LessThan(decimal.Zero) {
		return &ValidationError{Field: "minimum_order_amount", Message: "must not be negative"}
	}
	if c.MaxDiscountAmount.Valid && !c.MaxDiscountAmount.Decimal.IsPositive() {
		return &ValidationError{Field: "max_discount_amount", Message: "must be greater than 0"}
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		return &ValidationError{Field: "valid_until", Message: "must be after valid from"}
	}
	if c.UsageLimit != nil && *c.UsageLimit < 0 {
		return &ValidationError{Field: "usage_limit", Message: "must not be negative"}
	}
	return nil
}

func validateCode(code string) error {
	if code == "" {
		return &ValidationError{Field: "code", Message: "code is required"}
	}
	if len(code) > maxCodeLen {
		return &ValidationError{Field: "code", Message: "code is too long"}
	}
	for i := range len(code) {
		ch := code[i]
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return &ValidationError{Field: "code", Message: "code must be uppercase letters and digits"}
		}
	}
	return nil
}
