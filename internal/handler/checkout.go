package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/domain/location"
)

const (
	defaultAttempts = 20
	maxAttempts     = 100
)

func (h *Handler) placeCheckout(w http.ResponseWriter, r *http.Request) {
	body, err := decodeCheckout(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	req := checkout.Request{
		Payment:  checkout.PaymentMethod(body.payment),
		Location: body.location,
		Notes:    body.notes,
	}
	if req.Location == nil && body.locationID != "" {
		loc, err := h.savedLocation(r, body.locationID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		req.Location = loc
	}

	c := h.cart(r)
	receipt, err := h.Checkout.Place(r.Context(), c.Key(), c, c.Flow(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeReceipt(e, receipt) })
}

// savedLocation resolves a saved address id into a delivery location.
func (h *Handler) savedLocation(r *http.Request, id string) (*checkout.Location, error) {
	list, err := h.Locations.Locations(r.Context())
	if err != nil {
		return nil, errors.Wrap(err, "list locations")
	}
	l, ok := location.Find(list, id)
	if !ok {
		return nil, errors.Wrapf(checkout.ErrMissingDeliveryLocation, "unknown location %q", id)
	}
	return l.Delivery(), nil
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAttempts
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.fail(w, r, badRequest(errors.Errorf("invalid value %q", s), "limit"))
			return
		}
		limit = min(n, maxAttempts)
	}

	attempts, err := h.History.Attempts(r.Context(), sessionKeyFrom(r.Context()), limit)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list attempts"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("attempts", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, a := range attempts {
						encodeAttempt(e, a)
					}
				})
			})
		})
	})
}
