package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypeFlat takes a fixed amount off the subtotal, capped at the subtotal.
	TypeFlat Type = "flat"
	// TypePercent takes a percentage of the subtotal, optionally capped by MaxDiscount.
	TypePercent Type = "percent"
)

// ErrInvalidCoupon is returned when a coupon cannot be applied as given.
var ErrInvalidCoupon = errors.New("invalid coupon")

// Coupon is a discount that can be applied to a cart. At most one coupon
// is applied at a time.
type Coupon struct {
	ID    string
	Code  string
	Type  Type
	Value decimal.Decimal
	// MaxDiscount caps percent coupons. A missing or non-positive value
	// means no cap.
	MaxDiscount decimal.NullDecimal
}

// Validate reports whether the coupon is well formed enough to be applied.
func (c Coupon) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return errors.Wrap(ErrInvalidCoupon, "code required")
	}
	switch c.Type {
	case TypeFlat, TypePercent:
	default:
		return errors.Wrapf(ErrInvalidCoupon, "unsupported type %q", c.Type)
	}
	if c.Value.IsNegative() {
		return errors.Wrap(ErrInvalidCoupon, "negative value")
	}
	return nil
}

// Definition is a coupon as advertised by the coupon catalog, with the
// conditions the customer must meet before applying it.
type Definition struct {
	Coupon
	Description   string
	MinOrderValue decimal.Decimal
	ExpiresAt     *time.Time
}

// Eligible reports whether the coupon can be used for a cart with the given
// subtotal at the given time. A zero minimum order value always qualifies.
func (d Definition) Eligible(subtotal decimal.Decimal, now time.Time) bool {
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return false
	}
	if !d.MinOrderValue.IsPositive() {
		return true
	}
	return subtotal.GreaterThanOrEqual(d.MinOrderValue)
}

// Catalog lists the coupons currently offered to the customer.
type Catalog interface {
	Coupons(ctx context.Context) ([]Definition, error)
}
