package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/domain/order"
	"github.com/nearandnow/cart-service/internal/wire"
)

var (
	_ checkout.Submitter = (*Client)(nil)
	_ order.Lister       = (*Client)(nil)
)

// SubmitOrders places one order per store group. The submission succeeds
// only on a 2xx response whose body reports success=true. Every failure is
// returned as a *checkout.SubmissionError.
func (c *Client) SubmitOrders(ctx context.Context, s *checkout.Submission) error {
	env, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/customer/orders",
		body:   func(e *jx.Encoder) { encodeSubmission(e, s) },
	})
	if err != nil {
		return &checkout.SubmissionError{Err: err}
	}
	if env.success == nil || !*env.success {
		return &checkout.SubmissionError{Err: &RejectedError{Message: env.message}}
	}
	return nil
}

func encodeSubmission(e *jx.Encoder, s *checkout.Submission) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(s.Payment)) })
		e.Field("delivery_address", func(e *jx.Encoder) { e.Str(s.Location.Label) })
		e.Field("delivery_latitude", func(e *jx.Encoder) { e.Float64(s.Location.Latitude) })
		e.Field("delivery_longitude", func(e *jx.Encoder) { e.Float64(s.Location.Longitude) })
		e.Field("notes", func(e *jx.Encoder) { wire.EncodeOptStr(e, s.Notes) })
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, g := range s.Groups {
					e.Obj(func(e *jx.Encoder) {
						e.Field("store_id", func(e *jx.Encoder) { e.Str(g.StoreID) })
						e.Field("items", func(e *jx.Encoder) {
							e.Arr(func(e *jx.Encoder) {
								for _, item := range g.Items {
									e.Obj(func(e *jx.Encoder) {
										e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
										e.Field("product_name", func(e *jx.Encoder) { e.Str(item.Name) })
										e.Field("unit", func(e *jx.Encoder) { wire.EncodeOptStr(e, item.Unit) })
										e.Field("unit_price", func(e *jx.Encoder) { wire.EncodeDecimal(e, item.UnitPrice) })
										e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
										e.Field("image_url", func(e *jx.Encoder) { wire.EncodeOptStr(e, item.ImageURL) })
									})
								}
							})
						})
					})
				}
			})
		})
	})
}

// Orders lists the customer's placed orders.
func (c *Client) Orders(ctx context.Context) ([]order.Summary, error) {
	var out []order.Summary
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/customer/orders",
		field: func(d *jx.Decoder, key string) error {
			if key != "orders" {
				return d.Skip()
			}
			return decodeArr(d, func(d *jx.Decoder) error {
				o, err := decodeOrder(d)
				if err != nil {
					return err
				}
				out = append(out, o)
				return nil
			})
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "orders")
	}
	return out, nil
}

func decodeOrder(d *jx.Decoder) (order.Summary, error) {
	var o order.Summary
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = wire.Str(d)
		case "order_code":
			o.Code, err = wire.Str(d)
		case "status":
			o.Status, err = wire.Str(d)
		case "store_id":
			o.StoreID, err = wire.Str(d)
		case "total_amount":
			o.TotalAmount, err = wire.Decimal(d)
		case "created_at":
			var t *time.Time
			if t, err = wire.Time(d); t != nil {
				o.CreatedAt = *t
			}
		case "order_items", "items":
			err = decodeArr(d, func(d *jx.Decoder) error {
				item, err := decodeOrderItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return o, errors.Wrap(err, "order")
	}
	return o, nil
}

func decodeOrderItem(d *jx.Decoder) (order.Item, error) {
	var item order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			item.ProductID, err = wire.Str(d)
		case "product_name", "name":
			item.ProductName, err = wire.Str(d)
		case "quantity":
			item.Quantity, err = wire.Int(d)
		case "unit_price", "price":
			item.UnitPrice, err = wire.Decimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return item, errors.Wrap(err, "order item")
	}
	return item, nil
}
