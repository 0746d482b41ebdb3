package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(requests int, key KeyFunc) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(RateLimitConfig{Requests: requests, Window: time.Minute}, key)
	l.now = clock.now
	return l, clock
}

func serveFrom(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(2, nil)
	h := l.Middleware()(okHandler())

	for i := range 2 {
		w := serveFrom(h, "10.0.0.1:5000")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := serveFrom(h, "10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body.Error.Code)
	assert.Equal(t, "rate limit exceeded", body.Error.Message)

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.2:5000").Code)
}

func TestLimiter_WindowResets(t *testing.T) {
	l, clock := newTestLimiter(1, nil)
	h := l.Middleware()(okHandler())

	require.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, serveFrom(h, "10.0.0.1:1").Code)

	clock.advance(time.Minute)
	assert.Equal(t, http.StatusOK, serveFrom(h, "10.0.0.1:1").Code)
}

func TestLimiter_KeyFunc(t *testing.T) {
	l, _ := newTestLimiter(1, func(r *http.Request) string {
		return r.Header.Get("Authorization")
	})
	h := l.Middleware()(okHandler())

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", token)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("Bearer a"))
	assert.Equal(t, http.StatusOK, send("Bearer b"))
	assert.Equal(t, http.StatusTooManyRequests, send("Bearer a"))
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(0, nil)
	h := l.Middleware()(okHandler())

	for range 10 {
		w := serveFrom(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(5, nil)
	h := l.Middleware()(okHandler())

	serveFrom(h, "10.0.0.1:1")
	clock.advance(30 * time.Second)
	serveFrom(h, "10.0.0.2:1")

	clock.advance(40 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.buckets, 1)
}

func TestLimiter_RunStops(t *testing.T) {
	l := NewLimiter(RateLimitConfig{Requests: 1, Window: time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientIP(t *testing.T) {
	for _, tt := range []struct {
		addr string
		want string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[::1]:443", "::1"},
		{"unix-socket", "unix-socket"},
	} {
		t.Run(tt.addr, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.addr
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
