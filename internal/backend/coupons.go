package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/nearandnow/cart-service/internal/domain/coupon"
	"github.com/nearandnow/cart-service/internal/wire"
)

var _ coupon.Catalog = (*Client)(nil)

// Coupons lists the coupons currently offered to the customer.
func (c *Client) Coupons(ctx context.Context) ([]coupon.Definition, error) {
	var out []coupon.Definition
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/customer/coupons",
		field: func(d *jx.Decoder, key string) error {
			if key != "coupons" {
				return d.Skip()
			}
			return decodeArr(d, func(d *jx.Decoder) error {
				def, err := decodeCoupon(d)
				if err != nil {
					return err
				}
				out = append(out, def)
				return nil
			})
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "coupons")
	}
	return out, nil
}

func decodeCoupon(d *jx.Decoder) (coupon.Definition, error) {
	var def coupon.Definition
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			def.ID, err = wire.Str(d)
		case "code":
			def.Code, err = wire.Str(d)
		case "description":
			def.Description, err = wire.Str(d)
		case "discount_type", "type":
			var t string
			t, err = wire.Str(d)
			def.Type = coupon.Type(t)
		case "value":
			def.Value, err = wire.Decimal(d)
		case "max_discount":
			def.MaxDiscount, err = wire.NullDecimal(d)
		case "min_order_value":
			def.MinOrderValue, err = wire.Decimal(d)
		case "expires_at":
			def.ExpiresAt, err = wire.Time(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return def, errors.Wrap(err, "coupon")
	}
	return def, nil
}
