package handler

import (
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/nearandnow/cart-service/internal/domain/cart"
	"github.com/nearandnow/cart-service/internal/domain/catalog"
	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/domain/coupon"
	"github.com/nearandnow/cart-service/internal/domain/location"
	"github.com/nearandnow/cart-service/internal/domain/order"
	"github.com/nearandnow/cart-service/internal/wire"
)

const maxBodySize = 1 << 20

// writeJSON encodes a response body with fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Bytes())))
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeBody reads the request body and walks its top-level object with fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	switch {
	case err != nil:
		return badRequest(err, "read body")
	case len(data) == 0:
		return badRequest(io.ErrUnexpectedEOF, "empty body")
	case len(data) > maxBodySize:
		return badRequest(errors.New("too large"), "body")
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return badRequest(err, "decode body")
	}
	return nil
}

func field(key string, err error) error {
	if err != nil {
		return errors.Wrap(err, key)
	}
	return nil
}

func decodeCandidate(r *http.Request) (cart.Candidate, error) {
	var c cart.Candidate
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			c.ProductID, err = wire.Str(d)
		case "store_id":
			c.StoreID, err = wire.Str(d)
		case "name":
			c.Name, err = wire.Str(d)
		case "unit":
			c.Unit, err = wire.Str(d)
		case "unit_price", "price":
			c.UnitPrice, err = wire.Decimal(d)
		case "distance_km":
			c.DistanceKm, err = wire.Decimal(d)
		case "image_url":
			c.ImageURL, err = wire.Str(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return c, err
}

func decodeQuantity(r *http.Request) (int, error) {
	var (
		qty   int
		found bool
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return field(key, d.Null())
		}
		found = true
		var err error
		qty, err = wire.Int(d)
		return field(key, err)
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, badRequest(errors.New("missing field"), "quantity")
	}
	return qty, nil
}

// decodeCoupon reads a coupon body. A body with only a code asks for the
// coupon to be looked up in the catalog.
func decodeCoupon(r *http.Request) (c coupon.Coupon, codeOnly bool, err error) {
	err = decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = wire.Str(d)
		case "code":
			c.Code, err = wire.Str(d)
		case "type", "discount_type":
			var s string
			s, err = wire.Str(d)
			c.Type = coupon.Type(s)
		case "value", "discount_value":
			c.Value, err = wire.Decimal(d)
		case "max_discount":
			c.MaxDiscount, err = wire.NullDecimal(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return c, c.Type == "", err
}

type checkoutBody struct {
	payment    string
	location   *checkout.Location
	locationID string
	notes      string
}

func decodeCheckout(r *http.Request) (checkoutBody, error) {
	var b checkoutBody
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "payment_method":
			b.payment, err = wire.Str(d)
		case "location_id":
			b.locationID, err = wire.Str(d)
		case "notes":
			b.notes, err = wire.Str(d)
		case "location":
			if d.Next() == jx.Null {
				return d.Null()
			}
			b.location = &checkout.Location{}
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "label", "address":
					b.location.Label, err = wire.Str(d)
				case "latitude", "lat":
					b.location.Latitude, err = wire.Float(d)
				case "longitude", "lng":
					b.location.Longitude, err = wire.Float(d)
				default:
					err = d.Skip()
				}
				return field(key, err)
			})
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return b, err
}

func decodeLocation(r *http.Request) (location.Location, error) {
	var l location.Location
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "label":
			l.Label, err = wire.Str(d)
		case "address":
			l.Address, err = wire.Str(d)
		case "latitude":
			l.Latitude, err = wire.Float(d)
		case "longitude":
			l.Longitude, err = wire.Float(d)
		case "is_default":
			l.IsDefault, err = wire.Bool(d)
		case "contact_name":
			l.ContactName, err = wire.Str(d)
		case "contact_phone":
			l.ContactPhone, err = wire.Str(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return l, err
}

func encodeItem(e *jx.Encoder, li cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Str(li.ProductID) })
		e.Field("store_id", func(e *jx.Encoder) { e.Str(li.StoreID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(li.Name) })
		e.Field("unit", func(e *jx.Encoder) { wire.EncodeOptStr(e, li.Unit) })
		e.Field("unit_price", func(e *jx.Encoder) { wire.EncodeMoney(e, li.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		e.Field("distance_km", func(e *jx.Encoder) { wire.EncodeDecimal(e, li.DistanceKm) })
		e.Field("image_url", func(e *jx.Encoder) { wire.EncodeOptStr(e, li.ImageURL) })
		e.Field("total", func(e *jx.Encoder) { wire.EncodeMoney(e, li.Total()) })
	})
}

func encodeItems(e *jx.Encoder, items []cart.LineItem) {
	e.Arr(func(e *jx.Encoder) {
		for _, li := range items {
			encodeItem(e, li)
		}
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	if c == nil {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("value", func(e *jx.Encoder) { wire.EncodeDecimal(e, c.Value) })
		e.Field("max_discount", func(e *jx.Encoder) {
			if !c.MaxDiscount.Valid {
				e.Null()
				return
			}
			wire.EncodeMoney(e, c.MaxDiscount.Decimal)
		})
	})
}

func encodeQuote(e *jx.Encoder, q cart.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { wire.EncodeMoney(e, q.Subtotal) })
		e.Field("convenience_fee", func(e *jx.Encoder) { wire.EncodeMoney(e, q.ConvenienceFee) })
		e.Field("packaging_fee", func(e *jx.Encoder) { wire.EncodeMoney(e, q.PackagingFee) })
		e.Field("delivery_fee", func(e *jx.Encoder) { wire.EncodeMoney(e, q.DeliveryFee) })
		e.Field("projected", func(e *jx.Encoder) { wire.EncodeMoney(e, q.Projected) })
		e.Field("discount", func(e *jx.Encoder) { wire.EncodeMoney(e, q.Discount) })
		e.Field("payable", func(e *jx.Encoder) { wire.EncodeMoney(e, q.Payable) })
		e.Field("units", func(e *jx.Encoder) { e.Int(q.Units) })
		e.Field("stores", func(e *jx.Encoder) { e.Int(q.Stores) })
	})
}

// cartView is a consistent snapshot of a cart for rendering.
type cartView struct {
	items  []cart.LineItem
	coupon *coupon.Coupon
	quote  cart.Quote
}

func snapshot(e *cart.Engine) cartView {
	return cartView{items: e.Items(), coupon: e.Coupon(), quote: e.Quote()}
}

func encodeCart(e *jx.Encoder, v cartView) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, v.items) })
		e.Field("coupon", func(e *jx.Encoder) { encodeCoupon(e, v.coupon) })
		e.Field("quote", func(e *jx.Encoder) { encodeQuote(e, v.quote) })
	})
}

func encodeGroups(e *jx.Encoder, groups []cart.StoreGroup) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("groups", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, g := range groups {
					e.Obj(func(e *jx.Encoder) {
						e.Field("store_id", func(e *jx.Encoder) { e.Str(g.StoreID) })
						e.Field("items", func(e *jx.Encoder) { encodeItems(e, g.Items) })
					})
				}
			})
		})
	})
}

func encodeDefinition(e *jx.Encoder, d coupon.Definition, eligible bool) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(d.Code) })
		e.Field("description", func(e *jx.Encoder) { wire.EncodeOptStr(e, d.Description) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(d.Type)) })
		e.Field("value", func(e *jx.Encoder) { wire.EncodeDecimal(e, d.Value) })
		e.Field("max_discount", func(e *jx.Encoder) {
			if !d.MaxDiscount.Valid {
				e.Null()
				return
			}
			wire.EncodeMoney(e, d.MaxDiscount.Decimal)
		})
		e.Field("min_order_value", func(e *jx.Encoder) { wire.EncodeMoney(e, d.MinOrderValue) })
		e.Field("expires_at", func(e *jx.Encoder) {
			if d.ExpiresAt == nil {
				e.Null()
				return
			}
			e.Str(d.ExpiresAt.UTC().Format(time.RFC3339))
		})
		e.Field("eligible", func(e *jx.Encoder) { e.Bool(eligible) })
	})
}

func encodeReceipt(e *jx.Encoder, rc *checkout.Receipt) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("attempt_id", func(e *jx.Encoder) { e.Str(rc.AttemptID.String()) })
		e.Field("orders", func(e *jx.Encoder) { e.Int(rc.Orders) })
		e.Field("payable", func(e *jx.Encoder) { wire.EncodeMoney(e, rc.Payable) })
	})
}

func encodeAttempt(e *jx.Encoder, a checkout.Attempt) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(a.ID.String()) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(a.Status)) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(a.Payment)) })
		e.Field("stores", func(e *jx.Encoder) { e.Int(a.Stores) })
		e.Field("projected", func(e *jx.Encoder) { wire.EncodeMoney(e, a.Projected) })
		e.Field("discount", func(e *jx.Encoder) { wire.EncodeMoney(e, a.Discount) })
		e.Field("payable", func(e *jx.Encoder) { wire.EncodeMoney(e, a.Payable) })
		e.Field("coupon_code", func(e *jx.Encoder) { wire.EncodeOptStr(e, a.CouponCode) })
		e.Field("error", func(e *jx.Encoder) { wire.EncodeOptStr(e, a.Error) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(a.CreatedAt.UTC().Format(time.RFC3339)) })
	})
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("price", func(e *jx.Encoder) { wire.EncodeMoney(e, p.Price) })
	e.Field("unit", func(e *jx.Encoder) { wire.EncodeOptStr(e, p.Unit) })
	e.Field("image_url", func(e *jx.Encoder) { wire.EncodeOptStr(e, p.ImageURL) })
	e.Field("category", func(e *jx.Encoder) { wire.EncodeOptStr(e, p.Category) })
}

func encodeFeed(e *jx.Encoder, f *catalog.Feed) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("stores", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range f.Stores {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
						e.Field("distance_km", func(e *jx.Encoder) { wire.EncodeDecimal(e, s.DistanceKm) })
						e.Field("products", func(e *jx.Encoder) {
							e.Arr(func(e *jx.Encoder) {
								for _, p := range s.Products {
									e.Obj(func(e *jx.Encoder) { encodeProduct(e, p) })
								}
							})
						})
					})
				}
			})
		})
		e.Field("ads", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, slot := range sortedSlots(f.Ads) {
					e.Field(slot, func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							for _, ad := range f.Ads[slot] {
								e.Obj(func(e *jx.Encoder) {
									e.Field("id", func(e *jx.Encoder) { e.Str(ad.ID) })
									e.Field("title", func(e *jx.Encoder) { e.Str(ad.Title) })
									e.Field("image_url", func(e *jx.Encoder) { wire.EncodeOptStr(e, ad.ImageURL) })
									e.Field("link", func(e *jx.Encoder) { wire.EncodeOptStr(e, ad.Link) })
								})
							}
						})
					})
				}
			})
		})
	})
}

func encodeListings(e *jx.Encoder, name string, list []catalog.Listing) {
	e.Obj(func(e *jx.Encoder) {
		e.Field(name, func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range list {
					e.Obj(func(e *jx.Encoder) {
						encodeProduct(e, l.Product)
						e.Field("store_id", func(e *jx.Encoder) { e.Str(l.StoreID) })
						e.Field("store_name", func(e *jx.Encoder) { wire.EncodeOptStr(e, l.StoreName) })
						e.Field("distance_km", func(e *jx.Encoder) { wire.EncodeDecimal(e, l.DistanceKm) })
					})
				}
			})
		})
	})
}

func encodeOrder(e *jx.Encoder, o order.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(o.DisplayCode()) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("store_id", func(e *jx.Encoder) { wire.EncodeOptStr(e, o.StoreID) })
		e.Field("total_amount", func(e *jx.Encoder) { wire.EncodeMoney(e, o.TotalAmount) })
		e.Field("created_at", func(e *jx.Encoder) {
			if o.CreatedAt.IsZero() {
				e.Null()
				return
			}
			e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("product_name", func(e *jx.Encoder) { e.Str(it.ProductName) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unit_price", func(e *jx.Encoder) { wire.EncodeMoney(e, it.UnitPrice) })
					})
				}
			})
		})
	})
}

func encodeLocation(e *jx.Encoder, l location.Location) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
		e.Field("label", func(e *jx.Encoder) { e.Str(l.Label) })
		e.Field("address", func(e *jx.Encoder) { wire.EncodeOptStr(e, l.Address) })
		e.Field("latitude", func(e *jx.Encoder) { e.Float64(l.Latitude) })
		e.Field("longitude", func(e *jx.Encoder) { e.Float64(l.Longitude) })
		e.Field("is_default", func(e *jx.Encoder) { e.Bool(l.IsDefault) })
		e.Field("contact_name", func(e *jx.Encoder) { wire.EncodeOptStr(e, l.ContactName) })
		e.Field("contact_phone", func(e *jx.Encoder) { wire.EncodeOptStr(e, l.ContactPhone) })
	})
}

func sortedSlots(ads map[string][]catalog.Ad) []string {
	return slices.Sorted(maps.Keys(ads))
}
