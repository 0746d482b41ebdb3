// Package session keeps one cart engine per customer session.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nearandnow/cart-service/internal/domain/cart"
	"github.com/nearandnow/cart-service/internal/domain/checkout"
)

// Key derives the registry key for a bearer token as the hex HMAC-SHA256 of
// the token under pepper, so raw tokens never appear in keys or logs.
func Key(pepper []byte, token string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Cart is the cart of one session together with its checkout flow.
//
// Every Update and View counts as use of the cart. A cart evicted while a
// caller still held it is put back into its registry on the next use,
// unless the session has been given a new cart in the meantime.
type Cart struct {
	key    string
	reg    *Registry
	mu     sync.Mutex
	engine *cart.Engine
	flow   checkout.Flow

	evicted bool         // guarded by mu
	seen    atomic.Int64 // unix nanoseconds of the last use
}

// Key returns the session key the cart is registered under.
func (c *Cart) Key() string { return c.key }

// Update runs fn with exclusive access to the cart engine.
func (c *Cart) Update(fn func(e *cart.Engine) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	return fn(c.engine)
}

// View runs fn with exclusive access to the cart engine for reading.
func (c *Cart) View(fn func(e *cart.Engine)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	fn(c.engine)
}

// touch records use of the cart. Callers hold c.mu.
func (c *Cart) touch() {
	c.seen.Store(c.reg.now().UnixNano())
	if c.evicted {
		c.evicted = !c.reg.restore(c)
	}
}

// Flow returns the checkout flow of the cart.
func (c *Cart) Flow() *checkout.Flow { return &c.flow }

// Registry holds the carts of all active sessions.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*Cart
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a Registry that evicts carts idle for longer than ttl.
// A zero ttl disables eviction.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		carts: make(map[string]*Cart),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cart for key, creating an empty one on first use.
func (r *Registry) Get(key string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[key]
	if !ok {
		c = &Cart{key: key, reg: r, engine: cart.New()}
		r.carts[key] = c
	}
	c.seen.Store(r.now().UnixNano())
	return c
}

// restore registers an evicted cart again. It reports false when the key
// already belongs to another cart.
func (r *Registry) restore(c *Cart) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[c.key]; ok {
		return false
	}
	r.carts[c.key] = c
	return true
}

// Len returns the number of live carts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

// Sweep evicts carts idle for longer than the ttl and returns how many were
// removed. Carts with a checkout in flight or currently in use are kept.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := r.now().Add(-r.ttl).UnixNano()
	evicted := 0
	for key, c := range r.carts {
		if c.seen.Load() > deadline || c.flow.InFlight() {
			continue
		}
		// Lock order is c.mu then r.mu, so never block on c.mu here.
		if !c.mu.TryLock() {
			continue
		}
		c.evicted = true
		delete(r.carts, key)
		c.mu.Unlock()
		evicted++
	}
	return evicted
}

// Run sweeps the registry every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				lg.Debug("Evicted idle carts", zap.Int("count", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}
