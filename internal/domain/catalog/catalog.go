package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nearandnow/cart-service/internal/domain/cart"
)

// Product is a product listed by a nearby store.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Unit     string
	ImageURL string
	Category string
}

// Store is a nearby store with the products it currently lists.
type Store struct {
	ID         string
	Name       string
	DistanceKm decimal.Decimal
	Products   []Product
}

// Candidate turns a listed product into a cart candidate, capturing the
// store distance at this moment.
func (s Store) Candidate(p Product) cart.Candidate {
	return cart.Candidate{
		ProductID:  p.ID,
		StoreID:    s.ID,
		Name:       p.Name,
		Unit:       p.Unit,
		UnitPrice:  p.Price,
		DistanceKm: s.DistanceKm,
		ImageURL:   p.ImageURL,
	}
}

// Ad is a promotional banner for a feed slot.
type Ad struct {
	ID       string
	Title    string
	ImageURL string
	Link     string
}

// Feed is the home feed for a location. Ads are grouped by slot name.
type Feed struct {
	Stores []Store
	Ads    map[string][]Ad
}

// FindProduct looks up a product and the store listing it.
func (f *Feed) FindProduct(productID string) (Store, Product, bool) {
	for _, s := range f.Stores {
		for _, p := range s.Products {
			if p.ID == productID {
				return s, p, true
			}
		}
	}
	return Store{}, Product{}, false
}

// Filter returns a feed restricted to products of the given category.
// Stores left without products are dropped. An empty category returns the
// feed unchanged.
func (f *Feed) Filter(category string) *Feed {
	if category == "" {
		return f
	}
	out := &Feed{Ads: f.Ads}
	for _, s := range f.Stores {
		var products []Product
		for _, p := range s.Products {
			if p.Category == category {
				products = append(products, p)
			}
		}
		if len(products) == 0 {
			continue
		}
		s.Products = products
		out.Stores = append(out.Stores, s)
	}
	return out
}

// Listing is a product found by search or category browsing, together with
// the store that sells it.
type Listing struct {
	Product
	StoreID    string
	StoreName  string
	DistanceKm decimal.Decimal
}

// Candidate turns the listing into a cart candidate.
func (l Listing) Candidate() cart.Candidate {
	s := Store{ID: l.StoreID, Name: l.StoreName, DistanceKm: l.DistanceKm}
	return s.Candidate(l.Product)
}

// Source is the catalog of nearby stores and products.
type Source interface {
	HomeFeed(ctx context.Context, lat, lng float64) (*Feed, error)
	Search(ctx context.Context, query string, lat, lng float64) ([]Listing, error)
	Category(ctx context.Context, slug string) ([]Listing, error)
}
