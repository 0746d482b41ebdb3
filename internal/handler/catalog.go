package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// coords reads the lat and lng query parameters. Both are optional; the
// backend falls back to the customer's default address.
func coords(r *http.Request) (lat, lng float64, err error) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"lat", &lat},
		{"lng", &lng},
	} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, 0, badRequest(err, p.name)
		}
		*p.dst = v
	}
	return lat, lng, nil
}

func (h *Handler) homeFeed(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := coords(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	feed, err := h.Catalog.HomeFeed(r.Context(), lat, lng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	feed = feed.Filter(r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFeed(e, feed) })
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.fail(w, r, badRequest(errors.New("missing parameter"), "q"))
		return
	}
	lat, lng, err := coords(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	results, err := h.Catalog.Search(r.Context(), query, lat, lng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeListings(e, "results", results) })
}

func (h *Handler) category(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.Category(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeListings(e, "products", products) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.Orders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, o := range orders {
						encodeOrder(e, o)
					}
				})
			})
		})
	})
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Locations.Locations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("locations", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, l := range list {
						encodeLocation(e, l)
					}
				})
			})
		})
	})
}

func (h *Handler) saveLocation(w http.ResponseWriter, r *http.Request) {
	l, err := decodeLocation(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := l.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	saved, err := h.Locations.SaveLocation(r.Context(), l)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeLocation(e, *saved) })
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	l, err := decodeLocation(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	l.ID = chi.URLParam(r, "id")
	if err := l.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Locations.UpdateLocation(r.Context(), l); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeLocation(e, l) })
}

func (h *Handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.Locations.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
