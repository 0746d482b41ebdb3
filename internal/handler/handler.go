// Package handler exposes the cart, checkout and catalog operations over a
// JSON HTTP API.
package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/nearandnow/cart-service/internal/backend"
	"github.com/nearandnow/cart-service/internal/domain/catalog"
	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/domain/coupon"
	"github.com/nearandnow/cart-service/internal/domain/location"
	"github.com/nearandnow/cart-service/internal/domain/order"
	"github.com/nearandnow/cart-service/internal/session"
	"github.com/nearandnow/cart-service/pkg/httpmiddleware"
)

const instrumentationName = "github.com/nearandnow/cart-service/internal/handler"

// Deps are the collaborators of the Handler. History is optional.
type Deps struct {
	Sessions  *session.Registry
	Checkout  *checkout.Service
	History   checkout.History
	Catalog   catalog.Source
	Coupons   coupon.Catalog
	Orders    order.Lister
	Locations location.Book
}

// Option configures a Handler.
type Option func(*Handler)

// WithMeterProvider sets the meter provider for handler metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(h *Handler) { h.meter = mp.Meter(instrumentationName) }
}

// WithClock overrides the time source used for coupon eligibility.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// Handler serves the /api routes.
type Handler struct {
	Deps

	pepper []byte
	now    func() time.Time
	meter  metric.Meter

	storeLimitRejections metric.Int64Counter
}

// New creates a Handler. The pepper keys the session registry.
func New(deps Deps, pepper []byte, opts ...Option) (*Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("sessions required")
	case deps.Checkout == nil:
		return nil, errors.New("checkout service required")
	case deps.Catalog == nil || deps.Coupons == nil || deps.Orders == nil || deps.Locations == nil:
		return nil, errors.New("backend collaborators required")
	}
	if deps.History == nil {
		deps.History = checkout.NopJournal{}
	}
	h := &Handler{
		Deps:   deps,
		pepper: pepper,
		now:    time.Now,
		meter:  metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(h)
	}

	rejections, err := h.meter.Int64Counter("cart.store_limit_rejections",
		metric.WithDescription("Items refused because the cart already spans the maximum number of stores"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cart.store_limit_rejections counter")
	}
	h.storeLimitRejections = rejections

	return h, nil
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.authenticate)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addItem)
		r.Put("/items/{productID}", h.updateQty)
		r.Delete("/items/{productID}", h.removeItem)
		r.Put("/coupon", h.applyCoupon)
		r.Delete("/coupon", h.removeCoupon)
		r.Get("/partition", h.partition)
	})
	r.Get("/coupons", h.listCoupons)

	r.Post("/checkout", h.placeCheckout)
	r.Get("/checkout/attempts", h.listAttempts)

	r.Get("/feed", h.homeFeed)
	r.Get("/search", h.search)
	r.Get("/categories/{slug}", h.category)
	r.Get("/orders", h.listOrders)

	r.Route("/locations", func(r chi.Router) {
		r.Get("/", h.listLocations)
		r.Post("/", h.saveLocation)
		r.Put("/{id}", h.updateLocation)
		r.Delete("/{id}", h.deleteLocation)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed")
	})
	return r
}

type sessionKey struct{}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// SessionKeyFunc keys rate limiting by session, falling back to the client
// address for anonymous requests.
func SessionKeyFunc(pepper []byte) httpmiddleware.KeyFunc {
	return func(r *http.Request) string {
		if token, ok := BearerToken(r); ok {
			return "s:" + session.Key(pepper, token)
		}
		return "ip:" + httpmiddleware.ClientIP(r)
	}
}

// authenticate requires a bearer token. The token is forwarded to the
// backend as is and its HMAC selects the session cart.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			h.fail(w, r, errUnauthorized)
			return
		}
		ctx := backend.WithToken(r.Context(), token)
		ctx = context.WithValue(ctx, sessionKey{}, session.Key(h.pepper, token))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(sessionKey{}).(string)
	return key
}

func (h *Handler) cart(r *http.Request) *session.Cart {
	return h.Sessions.Get(sessionKeyFrom(r.Context()))
}
