package cart

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/nearandnow/cart-service/internal/domain/coupon"
)

const (
	// MaxStores is the number of distinct stores a single cart may hold.
	MaxStores = 2
	// MaxQuantity is the largest quantity a single line item may carry.
	MaxQuantity = 999
)

var (
	// ErrStoreLimitExceeded is returned by AddItem when the candidate would
	// introduce a store beyond MaxStores. The cart is left unchanged.
	ErrStoreLimitExceeded = errors.New("cart already holds items from the maximum number of stores")
	// ErrInvalidItem is returned when a candidate is missing its identity or
	// carries negative amounts.
	ErrInvalidItem = errors.New("invalid cart item")
)

// Candidate is a product reference offered for the cart, without a quantity.
type Candidate struct {
	ProductID string
	StoreID   string
	Name      string
	Unit      string
	UnitPrice decimal.Decimal
	// DistanceKm is the store-to-customer distance at the time the item was added.
	DistanceKm decimal.Decimal
	ImageURL   string
}

// Validate checks the candidate before it reaches the engine.
func (c Candidate) Validate() error {
	switch {
	case strings.TrimSpace(c.ProductID) == "":
		return errors.Wrap(ErrInvalidItem, "product id required")
	case strings.TrimSpace(c.StoreID) == "":
		return errors.Wrap(ErrInvalidItem, "store id required")
	case c.UnitPrice.IsNegative():
		return errors.Wrapf(ErrInvalidItem, "negative unit price for product %s", c.ProductID)
	case c.DistanceKm.IsNegative():
		return errors.Wrapf(ErrInvalidItem, "negative distance for product %s", c.ProductID)
	}
	return nil
}

// LineItem is a candidate held in the cart with a quantity of at least 1.
type LineItem struct {
	Candidate
	Quantity int
}

// Total returns unit price times quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Engine owns the line items and the applied coupon of one customer cart.
// Items keep insertion order, which is also the display order. Derived
// amounts are recomputed on every read and never stored.
//
// Engine is not safe for concurrent use; callers serialize access.
type Engine struct {
	items  []LineItem
	coupon *coupon.Coupon
}

// New returns an empty cart engine.
func New() *Engine {
	return &Engine{}
}

// AddItem puts the candidate into the cart. A product already present has
// its quantity incremented by one and keeps its original price, name and
// distance; an item already at MaxQuantity is rejected with ErrInvalidItem.
// A candidate from a new store is rejected with
// ErrStoreLimitExceeded once MaxStores stores are present.
func (e *Engine) AddItem(c Candidate) error {
	if i := e.find(c.ProductID); i >= 0 {
		if e.items[i].Quantity >= MaxQuantity {
			return errors.Wrapf(ErrInvalidItem, "quantity of product %s exceeds %d", c.ProductID, MaxQuantity)
		}
		e.items[i].Quantity++
		return nil
	}

	stores := e.StoreIDs()
	if len(stores) >= MaxStores && !slices.Contains(stores, c.StoreID) {
		return ErrStoreLimitExceeded
	}

	e.items = append(e.items, LineItem{Candidate: c, Quantity: 1})
	return nil
}

// RemoveItem deletes the line item for productID. Missing ids are ignored.
func (e *Engine) RemoveItem(productID string) {
	i := e.find(productID)
	if i < 0 {
		return
	}
	e.items = append(e.items[:i], e.items[i+1:]...)
}

// UpdateQty sets the quantity of productID to qty. A non-positive qty
// removes the item. Missing ids are ignored. A qty above MaxQuantity is
// rejected with ErrInvalidItem and leaves the cart unchanged.
func (e *Engine) UpdateQty(productID string, qty int) error {
	if qty > MaxQuantity {
		return errors.Wrapf(ErrInvalidItem, "quantity %d exceeds %d", qty, MaxQuantity)
	}
	if qty <= 0 {
		e.RemoveItem(productID)
		return nil
	}
	if i := e.find(productID); i >= 0 {
		e.items[i].Quantity = qty
	}
	return nil
}

// Clear empties the cart and drops the applied coupon.
func (e *Engine) Clear() {
	e.items = nil
	e.coupon = nil
}

// ApplyCoupon replaces the applied coupon. No eligibility check is made here.
func (e *Engine) ApplyCoupon(c coupon.Coupon) {
	e.coupon = &c
}

// RemoveCoupon drops the applied coupon, if any.
func (e *Engine) RemoveCoupon() {
	e.coupon = nil
}

// Coupon returns a copy of the applied coupon, or nil.
func (e *Engine) Coupon() *coupon.Coupon {
	if e.coupon == nil {
		return nil
	}
	c := *e.coupon
	return &c
}

// Items returns a copy of the line items in insertion order.
func (e *Engine) Items() []LineItem {
	out := make([]LineItem, len(e.items))
	copy(out, e.items)
	return out
}

// Len returns the number of line items.
func (e *Engine) Len() int {
	return len(e.items)
}

// StoreIDs returns the distinct store ids in order of first appearance.
func (e *Engine) StoreIDs() []string {
	var ids []string
	for _, item := range e.items {
		if !slices.Contains(ids, item.StoreID) {
			ids = append(ids, item.StoreID)
		}
	}
	return ids
}

func (e *Engine) find(productID string) int {
	for i := range e.items {
		if e.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
