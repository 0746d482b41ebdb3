package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearandnow/cart-service/internal/backend"
	"github.com/nearandnow/cart-service/internal/domain/catalog"
	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/domain/coupon"
	"github.com/nearandnow/cart-service/internal/domain/location"
	"github.com/nearandnow/cart-service/internal/domain/order"
	"github.com/nearandnow/cart-service/internal/session"
)

const testToken = "token-a"

var testNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// fakeBackend stands in for the remote customer API.
type fakeBackend struct {
	mu sync.Mutex

	feed      *catalog.Feed
	listings  []catalog.Listing
	coupons   []coupon.Definition
	orders    []order.Summary
	ordersErr error
	locations []location.Location
	saved     []location.Location
	deleted   []string
	submitErr error
	submitted []*checkout.Submission
	tokens    []string
}

func (f *fakeBackend) seen(ctx context.Context) {
	token, _ := backend.TokenFrom(ctx)
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
}

func (f *fakeBackend) HomeFeed(ctx context.Context, _, _ float64) (*catalog.Feed, error) {
	f.seen(ctx)
	return f.feed, nil
}

func (f *fakeBackend) Search(ctx context.Context, _ string, _, _ float64) ([]catalog.Listing, error) {
	f.seen(ctx)
	return f.listings, nil
}

func (f *fakeBackend) Category(ctx context.Context, _ string) ([]catalog.Listing, error) {
	f.seen(ctx)
	return f.listings, nil
}

func (f *fakeBackend) Coupons(ctx context.Context) ([]coupon.Definition, error) {
	f.seen(ctx)
	return f.coupons, nil
}

func (f *fakeBackend) Orders(ctx context.Context) ([]order.Summary, error) {
	f.seen(ctx)
	return f.orders, f.ordersErr
}

func (f *fakeBackend) Locations(ctx context.Context) ([]location.Location, error) {
	f.seen(ctx)
	return f.locations, nil
}

func (f *fakeBackend) SaveLocation(ctx context.Context, l location.Location) (*location.Location, error) {
	f.seen(ctx)
	l.ID = "loc-new"
	f.saved = append(f.saved, l)
	return &l, nil
}

func (f *fakeBackend) UpdateLocation(ctx context.Context, l location.Location) error {
	f.seen(ctx)
	f.saved = append(f.saved, l)
	return nil
}

func (f *fakeBackend) DeleteLocation(ctx context.Context, id string) error {
	f.seen(ctx)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) SubmitOrders(ctx context.Context, s *checkout.Submission) error {
	f.seen(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, s)
	return f.submitErr
}

type fakeHistory struct {
	key      string
	limit    int
	attempts []checkout.Attempt
}

func (f *fakeHistory) Attempts(_ context.Context, key string, limit int) ([]checkout.Attempt, error) {
	f.key, f.limit = key, limit
	return f.attempts, nil
}

type testServer struct {
	http.Handler
	backend *fakeBackend
	history *fakeHistory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	fb := &fakeBackend{}
	hist := &fakeHistory{}

	svc, err := checkout.NewService(fb, nil)
	require.NoError(t, err)

	h, err := New(Deps{
		Sessions:  session.NewRegistry(time.Hour),
		Checkout:  svc,
		History:   hist,
		Catalog:   fb,
		Coupons:   fb,
		Orders:    fb,
		Locations: fb,
	}, []byte("pepper"), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api", h.Routes())
	return &testServer{Handler: r, backend: fb, history: hist}
}

func (s *testServer) call(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.callAs(t, testToken, method, path, body)
}

func (s *testServer) callAs(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

// decode parses a response body keeping numbers as written.
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	dec := json.NewDecoder(w.Body)
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out), "body: %s", w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "no error object in %v", body)
	return e["code"].(string)
}

func quoteOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	q, ok := body["quote"].(map[string]any)
	require.True(t, ok)
	return q
}

func num(v any) string {
	return v.(json.Number).String()
}

const (
	itemP1 = `{"product_id":"p1","store_id":"s1","name":"Milk","unit":"1 L","unit_price":50,"distance_km":1.2}`
	itemP2 = `{"product_id":"p2","store_id":"s2","name":"Bread","unit_price":"20","distance_km":0.4}`
	itemP3 = `{"product_id":"p3","store_id":"s3","name":"Eggs","unit_price":70,"distance_km":2}`
)

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		s.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
		assert.Equal(t, "unauthorized", errorCode(t, w))
	}
}

func TestCart_AddAndQuote(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/cart/items", itemP1).Code)
	require.Equal(t, http.StatusOK, s.call(t, http.MethodPost, "/api/cart/items", itemP1).Code)
	w := s.call(t, http.MethodPost, "/api/cart/items", itemP2)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "p1", first["product_id"])
	assert.Equal(t, "2", num(first["quantity"]))
	assert.Equal(t, "100.00", num(first["total"]))
	assert.Nil(t, body["coupon"])

	q := quoteOf(t, body)
	assert.Equal(t, "120.00", num(q["subtotal"]))
	assert.Equal(t, "30.00", num(q["convenience_fee"]))
	assert.Equal(t, "5.00", num(q["packaging_fee"]))
	assert.Equal(t, "16.00", num(q["delivery_fee"]))
	assert.Equal(t, "171.00", num(q["projected"]))
	assert.Equal(t, "0.00", num(q["discount"]))
	assert.Equal(t, "171.00", num(q["payable"]))
	assert.Equal(t, "3", num(q["units"]))
	assert.Equal(t, "2", num(q["stores"]))
}

func TestCart_StoreLimit(t *testing.T) {
	s := newTestServer(t)
	s.call(t, http.MethodPost, "/api/cart/items", itemP1)
	s.call(t, http.MethodPost, "/api/cart/items", itemP2)

	w := s.call(t, http.MethodPost, "/api/cart/items", itemP3)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "store_limit_exceeded", errorCode(t, w))

	body := decode(t, s.call(t, http.MethodGet, "/api/cart", ""))
	assert.Len(t, body["items"], 2)
}

func TestCart_Edits(t *testing.T) {
	s := newTestServer(t)
	s.call(t, http.MethodPost, "/api/cart/items", itemP1)
	s.call(t, http.MethodPost, "/api/cart/items", itemP2)

	w := s.call(t, http.MethodPut, "/api/cart/items/p1", `{"quantity":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	assert.Equal(t, "4", num(items[0].(map[string]any)["quantity"]))

	// Null and oversized quantities leave the line untouched.
	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodPut, "/api/cart/items/p1", `{"quantity":null}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.call(t, http.MethodPut, "/api/cart/items/p1", `{"quantity":1000}`).Code)
	w = s.call(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	items = decode(t, w)["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "4", num(items[0].(map[string]any)["quantity"]))

	w = s.call(t, http.MethodPut, "/api/cart/items/p1", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	// Missing ids are not an error.
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodPut, "/api/cart/items/nope", `{"quantity":3}`).Code)
	assert.Equal(t, http.StatusOK, s.call(t, http.MethodDelete, "/api/cart/items/nope", "").Code)

	w = s.call(t, http.MethodDelete, "/api/cart/items/p2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["items"])

	s.call(t, http.MethodPost, "/api/cart/items", itemP1)
	w = s.call(t, http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["items"])
}

func TestCart_BadRequests(t *testing.T) {
	s := newTestServer(t)

	for _, tt := range []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"EmptyBody", http.MethodPost, "/api/cart/items", "", http.StatusBadRequest, "bad_request"},
		{"Malformed", http.MethodPost, "/api/cart/items", `{"product_id":`, http.StatusBadRequest, "bad_request"},
		{"WrongType", http.MethodPost, "/api/cart/items", `{"product_id":"p","store_id":"s","unit_price":true}`, http.StatusBadRequest, "bad_request"},
		{"MissingStore", http.MethodPost, "/api/cart/items", `{"product_id":"p","unit_price":5}`, http.StatusUnprocessableEntity, "invalid_item"},
		{"NegativePrice", http.MethodPost, "/api/cart/items", `{"product_id":"p","store_id":"s","unit_price":-1}`, http.StatusUnprocessableEntity, "invalid_item"},
		{"MissingQuantity", http.MethodPut, "/api/cart/items/p", `{}`, http.StatusBadRequest, "bad_request"},
		{"NullQuantity", http.MethodPut, "/api/cart/items/p", `{"quantity":null}`, http.StatusBadRequest, "bad_request"},
		{"QuantityTooLarge", http.MethodPut, "/api/cart/items/p", `{"quantity":9223372036854775807}`, http.StatusUnprocessableEntity, "invalid_item"},
		{"UnknownRoute", http.MethodGet, "/api/nothing", "", http.StatusNotFound, "not_found"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := s.call(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestCart_Coupon(t *testing.T) {
	s := newTestServer(t)
	s.backend.coupons = []coupon.Definition{{
		Coupon: coupon.Coupon{ID: "c1", Code: "SAVE10", Type: coupon.TypeFlat, Value: d("10")},
	}}
	s.call(t, http.MethodPost, "/api/cart/items", itemP1)
	s.call(t, http.MethodPost, "/api/cart/items", itemP2)

	t.Run("ByCode", func(t *testing.T) {
		w := s.call(t, http.MethodPut, "/api/cart/coupon", `{"code":"save10"}`)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "SAVE10", body["coupon"].(map[string]any)["code"])
		q := quoteOf(t, body)
		assert.Equal(t, "10.00", num(q["discount"]))
		assert.Equal(t, "141.00", num(q["payable"]))
	})
	t.Run("Explicit", func(t *testing.T) {
		w := s.call(t, http.MethodPut, "/api/cart/coupon",
			`{"id":"c2","code":"HALF","type":"percent","value":50,"max_discount":25}`)
		require.Equal(t, http.StatusOK, w.Code)
		q := quoteOf(t, decode(t, w))
		assert.Equal(t, "25.00", num(q["discount"]))
	})
	t.Run("UnknownCode", func(t *testing.T) {
		w := s.call(t, http.MethodPut, "/api/cart/coupon", `{"code":"NOPE"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "invalid_coupon", errorCode(t, w))
	})
	t.Run("BadType", func(t *testing.T) {
		w := s.call(t, http.MethodPut, "/api/cart/coupon", `{"code":"X","type":"bogo","value":1}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
	t.Run("Remove", func(t *testing.T) {
		w := s.call(t, http.MethodDelete, "/api/cart/coupon", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Nil(t, body["coupon"])
		assert.Equal(t, "0.00", num(quoteOf(t, body)["discount"]))
	})
}

func TestCart_Partition(t *testing.T) {
	s := newTestServer(t)
	s.call(t, http.MethodPost, "/api/cart/items", itemP2)
	s.call(t, http.MethodPost, "/api/cart/items", itemP1)
	s.call(t, http.MethodPost, "/api/cart/items",
		`{"product_id":"p4","store_id":"s2","name":"Jam","unit_price":90,"distance_km":0.4}`)

	w := s.call(t, http.MethodGet, "/api/cart/partition", "")
	require.Equal(t, http.StatusOK, w.Code)
	groups := decode(t, w)["groups"].([]any)
	require.Len(t, groups, 2)

	g0 := groups[0].(map[string]any)
	assert.Equal(t, "s2", g0["store_id"])
	assert.Len(t, g0["items"], 2)
	assert.Equal(t, "s1", groups[1].(map[string]any)["store_id"])
}

func TestCoupons_Eligibility(t *testing.T) {
	s := newTestServer(t)
	expired := testNow.Add(-time.Hour)
	s.backend.coupons = []coupon.Definition{
		{Coupon: coupon.Coupon{Code: "LOW", Type: coupon.TypeFlat, Value: d("5")}, MinOrderValue: d("100")},
		{Coupon: coupon.Coupon{Code: "HIGH", Type: coupon.TypeFlat, Value: d("50")}, MinOrderValue: d("500")},
		{Coupon: coupon.Coupon{Code: "OLD", Type: coupon.TypeFlat, Value: d("5")}, ExpiresAt: &expired},
	}
	s.call(t, http.MethodPost, "/api/cart/items", itemP1)
	s.call(t, http.MethodPost, "/api/cart/items", itemP1)
	s.call(t, http.MethodPost, "/api/cart/items", itemP2)

	w := s.call(t, http.MethodGet, "/api/coupons", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "120.00", num(body["subtotal"]))

	eligible := map[string]bool{}
	for _, c := range body["coupons"].([]any) {
		c := c.(map[string]any)
		eligible[c["code"].(string)] = c["eligible"].(bool)
	}
	assert.Equal(t, map[string]bool{"LOW": true, "HIGH": false, "OLD": false}, eligible)
}

func TestCheckout(t *testing.T) {
	const place = `{"payment_method":"UPI","location":{"label":"Home","latitude":12.97,"longitude":77.59},"notes":"ring twice"}`

	t.Run("Success", func(t *testing.T) {
		s := newTestServer(t)
		s.call(t, http.MethodPost, "/api/cart/items", itemP1)
		s.call(t, http.MethodPost, "/api/cart/items", itemP2)

		w := s.call(t, http.MethodPost, "/api/checkout", place)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "2", num(body["orders"]))
		assert.Equal(t, "151.00", num(body["payable"]))
		_, err := uuid.Parse(body["attempt_id"].(string))
		assert.NoError(t, err)

		require.Len(t, s.backend.submitted, 1)
		sub := s.backend.submitted[0]
		assert.Equal(t, checkout.PaymentUPI, sub.Payment)
		assert.Equal(t, "Home", sub.Location.Label)
		assert.Equal(t, "ring twice", sub.Notes)
		assert.Len(t, sub.Groups, 2)
		assert.Contains(t, s.backend.tokens, testToken)

		cart := decode(t, s.call(t, http.MethodGet, "/api/cart", ""))
		assert.Empty(t, cart["items"])
	})
	t.Run("SavedLocation", func(t *testing.T) {
		s := newTestServer(t)
		s.backend.locations = []location.Location{
			{ID: "l1", Label: "Office", Latitude: 12.9, Longitude: 77.6},
		}
		s.call(t, http.MethodPost, "/api/cart/items", itemP1)

		w := s.call(t, http.MethodPost, "/api/checkout", `{"payment_method":"cod","location_id":"l1"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.Len(t, s.backend.submitted, 1)
		assert.Equal(t, "Office", s.backend.submitted[0].Location.Label)

		s.call(t, http.MethodPost, "/api/cart/items", itemP1)
		w = s.call(t, http.MethodPost, "/api/checkout", `{"payment_method":"cod","location_id":"missing"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "missing_delivery_location", errorCode(t, w))
	})
	t.Run("Guards", func(t *testing.T) {
		s := newTestServer(t)

		w := s.call(t, http.MethodPost, "/api/checkout", `{"payment_method":"upi"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "missing_delivery_location", errorCode(t, w))

		w = s.call(t, http.MethodPost, "/api/checkout", place)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "empty_cart", errorCode(t, w))

		s.call(t, http.MethodPost, "/api/cart/items", itemP1)
		w = s.call(t, http.MethodPost, "/api/checkout", `{"payment_method":"card","location":{"label":"Home","latitude":1,"longitude":1}}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "invalid_payment_method", errorCode(t, w))

		assert.Empty(t, s.backend.submitted)
	})
	t.Run("SubmissionFailed", func(t *testing.T) {
		s := newTestServer(t)
		s.backend.submitErr = &checkout.SubmissionError{Err: &backend.StatusError{Code: http.StatusInternalServerError}}
		s.call(t, http.MethodPost, "/api/cart/items", itemP1)

		w := s.call(t, http.MethodPost, "/api/checkout", place)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "submission_failed", errorCode(t, w))

		cart := decode(t, s.call(t, http.MethodGet, "/api/cart", ""))
		assert.Len(t, cart["items"], 1)

		s.backend.submitErr = nil
		w = s.call(t, http.MethodPost, "/api/checkout", place)
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestCheckout_Attempts(t *testing.T) {
	s := newTestServer(t)
	s.history.attempts = []checkout.Attempt{{
		ID:        uuid.MustParse("7a4c1f0e-1a2b-4c3d-8e9f-001122334455"),
		Status:    checkout.StatusFailed,
		Payment:   checkout.PaymentCOD,
		Stores:    1,
		Projected: d("171"),
		Payable:   d("171"),
		Error:     "boom",
		CreatedAt: testNow,
	}}

	w := s.call(t, http.MethodGet, "/api/checkout/attempts?limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxAttempts, s.history.limit)
	assert.Equal(t, session.Key([]byte("pepper"), testToken), s.history.key)

	attempts := decode(t, w)["attempts"].([]any)
	require.Len(t, attempts, 1)
	a := attempts[0].(map[string]any)
	assert.Equal(t, "failed", a["status"])
	assert.Equal(t, "171.00", num(a["payable"]))
	assert.Equal(t, "2026-05-10T09:00:00Z", a["created_at"])
	assert.Nil(t, a["coupon_code"])

	assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodGet, "/api/checkout/attempts?limit=x", "").Code)
}

func TestSessions_Isolated(t *testing.T) {
	s := newTestServer(t)
	s.callAs(t, "token-a", http.MethodPost, "/api/cart/items", itemP1)

	body := decode(t, s.callAs(t, "token-b", http.MethodGet, "/api/cart", ""))
	assert.Empty(t, body["items"])
	body = decode(t, s.callAs(t, "token-a", http.MethodGet, "/api/cart", ""))
	assert.Len(t, body["items"], 1)
}

func TestCatalog(t *testing.T) {
	s := newTestServer(t)
	s.backend.feed = &catalog.Feed{
		Stores: []catalog.Store{{
			ID: "s1", Name: "Fresh Mart", DistanceKm: d("1.2"),
			Products: []catalog.Product{
				{ID: "p1", Name: "Milk", Price: d("50"), Category: "dairy"},
				{ID: "p2", Name: "Apple", Price: d("120"), Category: "fruits"},
			},
		}},
		Ads: map[string][]catalog.Ad{"top": {{ID: "a1", Title: "Sale"}}},
	}
	s.backend.listings = []catalog.Listing{{
		Product: catalog.Product{ID: "p1", Name: "Milk", Price: d("50")},
		StoreID: "s1", StoreName: "Fresh Mart", DistanceKm: d("1.2"),
	}}

	t.Run("Feed", func(t *testing.T) {
		w := s.call(t, http.MethodGet, "/api/feed?lat=12.9&lng=77.6&category=dairy", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		stores := body["stores"].([]any)
		require.Len(t, stores, 1)
		products := stores[0].(map[string]any)["products"].([]any)
		require.Len(t, products, 1)
		assert.Equal(t, "p1", products[0].(map[string]any)["id"])
		assert.Contains(t, body["ads"], "top")
	})
	t.Run("BadCoords", func(t *testing.T) {
		w := s.call(t, http.MethodGet, "/api/feed?lat=north", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("Search", func(t *testing.T) {
		w := s.call(t, http.MethodGet, "/api/search?q=milk", "")
		require.Equal(t, http.StatusOK, w.Code)
		results := decode(t, w)["results"].([]any)
		require.Len(t, results, 1)
		assert.Equal(t, "s1", results[0].(map[string]any)["store_id"])

		assert.Equal(t, http.StatusBadRequest, s.call(t, http.MethodGet, "/api/search?q=%20", "").Code)
	})
	t.Run("Category", func(t *testing.T) {
		w := s.call(t, http.MethodGet, "/api/categories/dairy", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["products"], 1)
	})
}

func TestOrders(t *testing.T) {
	s := newTestServer(t)
	s.backend.orders = []order.Summary{{
		ID: "abcdef123", Status: "placed", TotalAmount: d("171"),
		Items: []order.Item{{ProductID: "p1", ProductName: "Milk", Quantity: 2, UnitPrice: d("50")}},
	}}

	w := s.call(t, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, w.Code)
	orders := decode(t, w)["orders"].([]any)
	require.Len(t, orders, 1)
	o := orders[0].(map[string]any)
	assert.Equal(t, "abcdef", o["code"])
	assert.Nil(t, o["created_at"])

	s.backend.ordersErr = errors.Wrap(&backend.StatusError{Code: http.StatusUnauthorized}, "orders")
	w = s.call(t, http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLocations(t *testing.T) {
	s := newTestServer(t)
	s.backend.locations = []location.Location{{ID: "l1", Label: "Home", Latitude: 1, Longitude: 2, IsDefault: true}}

	w := s.call(t, http.MethodGet, "/api/locations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["locations"], 1)

	w = s.call(t, http.MethodPost, "/api/locations", `{"label":"Gym","latitude":12.1,"longitude":77.2}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "loc-new", decode(t, w)["id"])

	w = s.call(t, http.MethodPost, "/api/locations", `{"label":"Nowhere"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_location", errorCode(t, w))

	w = s.call(t, http.MethodPut, "/api/locations/l1", `{"label":"Home 2","latitude":1,"longitude":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "l1", s.backend.saved[len(s.backend.saved)-1].ID)

	w = s.call(t, http.MethodDelete, "/api/locations/l1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"l1"}, s.backend.deleted)
}

func TestClassify(t *testing.T) {
	for _, tt := range []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"InFlight", checkout.ErrSubmissionInFlight, http.StatusConflict, "checkout_in_progress"},
		{"Partition", errors.Wrap(checkout.ErrPartitionLimitExceeded, "place"), http.StatusUnprocessableEntity, "partition_limit_exceeded"},
		{"NoToken", backend.ErrNoToken, http.StatusUnauthorized, "unauthorized"},
		{"BackendDown", &backend.StatusError{Code: http.StatusServiceUnavailable}, http.StatusBadGateway, "backend_error"},
		{"BackendNotFound", &backend.StatusError{Code: http.StatusNotFound}, http.StatusNotFound, "not_found"},
		{"Rejected", &backend.RejectedError{Message: "no stock"}, http.StatusBadGateway, "backend_rejected"},
		{"Unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.status, got.status)
			assert.Equal(t, tt.code, got.code)
		})
	}

	got := classify(&checkout.SubmissionError{Err: errors.New("dial tcp: refused")})
	assert.Equal(t, checkout.ErrSubmissionFailed.Error(), got.msg)
}

func TestSessionKeyFunc(t *testing.T) {
	key := SessionKeyFunc([]byte("pepper"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:3000"
	assert.Equal(t, "ip:10.1.1.1", key(req))

	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "s:"+session.Key([]byte("pepper"), "abc"), key(req))
}
