package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client request limit.
type RateLimitConfig struct {
	// Requests allowed per window and key. Zero disables limiting.
	Requests int           `default:"120" usage:"Requests per window and client"`
	Window   time.Duration `default:"1m" usage:"Rate limit window"`
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(*http.Request) string

// ClientIP keys requests by the remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	start time.Time
	count int
}

// Limiter is a fixed window request counter keyed by KeyFunc.
type Limiter struct {
	cfg RateLimitConfig
	key KeyFunc
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter creates a Limiter. A nil key counts requests by ClientIP.
func NewLimiter(cfg RateLimitConfig, key KeyFunc) *Limiter {
	if key == nil {
		key = ClientIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		key:     key,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// take counts one request for key, reporting whether it fits in the window,
// how many requests are left and when the window resets.
func (l *Limiter) take(key string) (ok bool, left int, reset time.Time) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || now.Sub(b.start) >= l.cfg.Window {
		b = &bucket{start: now}
		l.buckets[key] = b
	}
	reset = b.start.Add(l.cfg.Window)
	if b.count >= l.cfg.Requests {
		return false, 0, reset
	}
	b.count++
	return true, l.cfg.Requests - b.count, reset
}

// Sweep drops buckets whose window has passed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for k, b := range l.buckets {
		if now.Sub(b.start) >= l.cfg.Window {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Run sweeps expired buckets once per window until ctx is done.
func (l *Limiter) Run(ctx context.Context) error {
	t := time.NewTicker(l.cfg.Window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			l.Sweep()
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() Middleware {
	limit := strconv.Itoa(l.cfg.Requests)
	return func(next http.Handler) http.Handler {
		if l.cfg.Requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, left, reset := l.take(l.key(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(int(reset.Sub(l.now()).Round(time.Second)/time.Second), 1)
				h.Set("Retry-After", strconv.Itoa(wait))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
