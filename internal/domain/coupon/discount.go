package coupon

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Amount returns the discount the coupon grants on the given subtotal.
// Fees are never discounted, so only the items subtotal is considered.
// A nil coupon or an unknown type yields zero. The amount is exact and is
// never more than the subtotal; rounding is left to presentation.
func Amount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if c == nil {
		return zero
	}

	switch c.Type {
	case TypeFlat:
		return applyFlat(c, subtotal)
	case TypePercent:
		return applyPercent(c, subtotal)
	default:
		return zero
	}
}

func applyFlat(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	return floorAtZero(decimal.Min(c.Value, subtotal))
}

func applyPercent(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	amount := subtotal.Mul(c.Value).Div(hundred)
	if c.MaxDiscount.Valid && c.MaxDiscount.Decimal.IsPositive() {
		amount = decimal.Min(amount, c.MaxDiscount.Decimal)
	}
	return floorAtZero(decimal.Min(amount, subtotal))
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
