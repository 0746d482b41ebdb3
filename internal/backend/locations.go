package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/nearandnow/cart-service/internal/domain/location"
	"github.com/nearandnow/cart-service/internal/wire"
)

var _ location.Book = (*Client)(nil)

// Locations lists the customer's saved delivery locations.
func (c *Client) Locations(ctx context.Context) ([]location.Location, error) {
	var out []location.Location
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/customer/locations",
		field: func(d *jx.Decoder, key string) error {
			if key != "locations" {
				return d.Skip()
			}
			return decodeArr(d, func(d *jx.Decoder) error {
				l, err := decodeLocation(d)
				if err != nil {
					return err
				}
				out = append(out, l)
				return nil
			})
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "locations")
	}
	return out, nil
}

// SaveLocation stores a new location. When the backend echoes the stored
// location it is returned, otherwise the input is returned unchanged.
func (c *Client) SaveLocation(ctx context.Context, l location.Location) (*location.Location, error) {
	saved := l
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/customer/locations",
		body:   func(e *jx.Encoder) { encodeLocation(e, l) },
		field: func(d *jx.Decoder, key string) error {
			if key != "location" || d.Next() != jx.Object {
				return d.Skip()
			}
			v, err := decodeLocation(d)
			if err != nil {
				return err
			}
			saved = v
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "save location")
	}
	return &saved, nil
}

// UpdateLocation replaces the stored location with the same id.
func (c *Client) UpdateLocation(ctx context.Context, l location.Location) error {
	_, err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/customer/locations/" + url.PathEscape(l.ID),
		body:   func(e *jx.Encoder) { encodeLocation(e, l) },
	})
	if err != nil {
		return errors.Wrapf(err, "update location %s", l.ID)
	}
	return nil
}

// DeleteLocation removes a saved location.
func (c *Client) DeleteLocation(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/customer/locations/" + url.PathEscape(id),
	})
	if err != nil {
		return errors.Wrapf(err, "delete location %s", id)
	}
	return nil
}

func encodeLocation(e *jx.Encoder, l location.Location) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("label", func(e *jx.Encoder) { e.Str(l.Label) })
		e.Field("address", func(e *jx.Encoder) { e.Str(l.Address) })
		e.Field("latitude", func(e *jx.Encoder) { e.Float64(l.Latitude) })
		e.Field("longitude", func(e *jx.Encoder) { e.Float64(l.Longitude) })
		e.Field("contact_name", func(e *jx.Encoder) { wire.EncodeOptStr(e, l.ContactName) })
		e.Field("contact_phone", func(e *jx.Encoder) { wire.EncodeOptStr(e, l.ContactPhone) })
	})
}

func decodeLocation(d *jx.Decoder) (location.Location, error) {
	var l location.Location
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			l.ID, err = wire.Str(d)
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
		case "contact_name", "receiver_name":
			l.ContactName, err = wire.Str(d)
		case "contact_phone", "receiver_phone":
			l.ContactPhone, err = wire.Str(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return l, errors.Wrap(err, "location")
	}
	return l, nil
}
