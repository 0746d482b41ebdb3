package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/nearandnow/cart-service/internal/domain/catalog"
	"github.com/nearandnow/cart-service/internal/wire"
)

var _ catalog.Source = (*Client)(nil)

// HomeFeed returns the stores and ads around the given coordinate.
func (c *Client) HomeFeed(ctx context.Context, lat, lng float64) (*catalog.Feed, error) {
	feed := &catalog.Feed{Ads: map[string][]catalog.Ad{}}
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/customer/home-feed",
		query:  coords(lat, lng),
		field: func(d *jx.Decoder, key string) error {
			switch key {
			case "stores":
				return decodeArr(d, func(d *jx.Decoder) error {
					s, err := decodeStore(d)
					if err != nil {
						return err
					}
					feed.Stores = append(feed.Stores, s)
					return nil
				})
			case "ads":
				if d.Next() != jx.Object {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, slot string) error {
					return decodeArr(d, func(d *jx.Decoder) error {
						ad, err := decodeAd(d)
						if err != nil {
							return err
						}
						feed.Ads[slot] = append(feed.Ads[slot], ad)
						return nil
					})
				})
			default:
				return d.Skip()
			}
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "home feed")
	}
	return feed, nil
}

// Search finds products matching query near the given coordinate.
func (c *Client) Search(ctx context.Context, query string, lat, lng float64) ([]catalog.Listing, error) {
	q := coords(lat, lng)
	q.Set("q", query)

	listings, err := c.listings(ctx, "/customer/search", q, "results")
	if err != nil {
		return nil, errors.Wrap(err, "search")
	}
	return listings, nil
}

// Category lists the products of a category.
func (c *Client) Category(ctx context.Context, slug string) ([]catalog.Listing, error) {
	listings, err := c.listings(ctx, "/customer/category/"+url.PathEscape(slug), nil, "products")
	if err != nil {
		return nil, errors.Wrapf(err, "category %q", slug)
	}
	return listings, nil
}

func (c *Client) listings(ctx context.Context, path string, q url.Values, field string) ([]catalog.Listing, error) {
	var out []catalog.Listing
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   path,
		query:  q,
		field: func(d *jx.Decoder, key string) error {
			if key != field {
				return d.Skip()
			}
			return decodeArr(d, func(d *jx.Decoder) error {
				l, err := decodeListing(d)
				if err != nil {
					return err
				}
				out = append(out, l)
				return nil
			})
		},
	})
	return out, err
}

func coords(lat, lng float64) url.Values {
	return url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(lng, 'f', -1, 64)},
	}
}

// decodeArr decodes an array, treating null as empty.
func decodeArr(d *jx.Decoder, f func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Arr(f)
}

func decodeStore(d *jx.Decoder) (catalog.Store, error) {
	var s catalog.Store
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "store_id", "id":
			s.ID, err = wire.Str(d)
		case "store_name", "name":
			s.Name, err = wire.Str(d)
		case "distance_km":
			s.DistanceKm, err = wire.Decimal(d)
		case "products":
			err = decodeArr(d, func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				s.Products = append(s.Products, p)
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
		return s, errors.Wrap(err, "store")
	}
	return s, nil
}

func decodeProduct(d *jx.Decoder) (catalog.Product, error) {
	var p catalog.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id", "id":
			p.ID, err = wire.Str(d)
		case "name":
			p.Name, err = wire.Str(d)
		case "price":
			p.Price, err = wire.Decimal(d)
		case "unit":
			p.Unit, err = wire.Str(d)
		case "image_url":
			p.ImageURL, err = wire.Str(d)
		case "category":
			p.Category, err = wire.Str(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return p, errors.Wrap(err, "product")
	}
	return p, nil
}

func decodeListing(d *jx.Decoder) (catalog.Listing, error) {
	var l catalog.Listing
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id", "id":
			l.ID, err = wire.Str(d)
		case "name":
			l.Name, err = wire.Str(d)
		case "price":
			l.Price, err = wire.Decimal(d)
		case "unit":
			l.Unit, err = wire.Str(d)
		case "image_url":
			l.ImageURL, err = wire.Str(d)
		case "category":
			l.Category, err = wire.Str(d)
		case "store_id":
			l.StoreID, err = wire.Str(d)
		case "store_name":
			l.StoreName, err = wire.Str(d)
		case "distance_km":
			l.DistanceKm, err = wire.Decimal(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return l, errors.Wrap(err, "listing")
	}
	return l, nil
}

func decodeAd(d *jx.Decoder) (catalog.Ad, error) {
	var ad catalog.Ad
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			ad.ID, err = wire.Str(d)
		case "title":
			ad.Title, err = wire.Str(d)
		case "image_url":
			ad.ImageURL, err = wire.Str(d)
		case "link", "redirect_url":
			ad.Link, err = wire.Str(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return ad, errors.Wrap(err, "ad")
	}
	return ad, nil
}
