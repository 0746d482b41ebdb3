package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nearandnow/cart-service/internal/domain/cart"
	"github.com/nearandnow/cart-service/internal/domain/coupon"
	"github.com/nearandnow/cart-service/internal/wire"
)

// edit applies fn to the session cart and renders the resulting cart.
func (h *Handler) edit(w http.ResponseWriter, r *http.Request, fn func(e *cart.Engine) error) {
	var view cartView
	err := h.cart(r).Update(func(e *cart.Engine) error {
		if err := fn(e); err != nil {
			return err
		}
		view = snapshot(e)
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, view) })
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	var view cartView
	h.cart(r).View(func(e *cart.Engine) { view = snapshot(e) })
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, view) })
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCandidate(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := c.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	h.edit(w, r, func(e *cart.Engine) error {
		err := e.AddItem(c)
		if errors.Is(err, cart.ErrStoreLimitExceeded) {
			h.storeLimitRejections.Add(r.Context(), 1)
			zctx.From(r.Context()).Debug("Store limit reached",
				zap.String("product_id", c.ProductID),
				zap.String("store_id", c.StoreID),
				zap.Strings("stores", e.StoreIDs()),
			)
		}
		return err
	})
}

func (h *Handler) updateQty(w http.ResponseWriter, r *http.Request) {
	qty, err := decodeQuantity(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "productID")
	h.edit(w, r, func(e *cart.Engine) error {
		return e.UpdateQty(id, qty)
	})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	h.edit(w, r, func(e *cart.Engine) error {
		e.RemoveItem(id)
		return nil
	})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(e *cart.Engine) error {
		e.Clear()
		return nil
	})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	c, codeOnly, err := decodeCoupon(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if codeOnly {
		found, err := h.lookupCoupon(r, c.Code)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		c = found
	}
	if err := c.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.edit(w, r, func(e *cart.Engine) error {
		e.ApplyCoupon(c)
		return nil
	})
}

// lookupCoupon finds a coupon of the catalog by code, ignoring case.
func (h *Handler) lookupCoupon(r *http.Request, code string) (coupon.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return coupon.Coupon{}, errors.Wrap(coupon.ErrInvalidCoupon, "code required")
	}
	defs, err := h.Coupons.Coupons(r.Context())
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "list coupons")
	}
	for _, d := range defs {
		if strings.EqualFold(d.Code, code) {
			return d.Coupon, nil
		}
	}
	return coupon.Coupon{}, errors.Wrapf(coupon.ErrInvalidCoupon, "unknown code %q", code)
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(e *cart.Engine) error {
		e.RemoveCoupon()
		return nil
	})
}

func (h *Handler) partition(w http.ResponseWriter, r *http.Request) {
	var groups []cart.StoreGroup
	h.cart(r).View(func(e *cart.Engine) { groups = e.Partition() })
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeGroups(e, groups) })
}

// listCoupons returns the coupon catalog, each coupon flagged with whether
// the current cart qualifies for it.
func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	defs, err := h.Coupons.Coupons(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var view cartView
	h.cart(r).View(func(e *cart.Engine) { view = snapshot(e) })
	now := h.now()

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("subtotal", func(e *jx.Encoder) { wire.EncodeMoney(e, view.quote.Subtotal) })
			e.Field("coupons", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, d := range defs {
						encodeDefinition(e, d, d.Eligible(view.quote.Subtotal, now))
					}
				})
			})
		})
	})
}
