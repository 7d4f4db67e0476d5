package web

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

// ClientLimiter keeps a token bucket per client key. Buckets untouched for
// the idle window are dropped by the first admission after a sweep falls due,
// so the map stays bounded without a background goroutine.
type ClientLimiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	clock func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	*rate.Limiter
	touched time.Time
}

type LimiterOption func(*ClientLimiter)

// WithIdleWindow sets how long a silent client keeps its bucket.
func WithIdleWindow(d time.Duration) LimiterOption {
	return func(c *ClientLimiter) {
		if d > 0 {
			c.idle = d
		}
	}
}

func NewClientLimiter(rps float64, burst int, opts ...LimiterOption) *ClientLimiter {
	c := &ClientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    15 * time.Minute,
		clock:   time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Admit spends one token from key's bucket. When the bucket is empty nothing
// is spent and wait is how long until a token frees up.
func (c *ClientLimiter) Admit(key string) (ok bool, wait time.Duration) {
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.Before(c.nextSweep) {
		for k, b := range c.buckets {
			if now.Sub(b.touched) > c.idle {
				delete(c.buckets, k)
			}
		}
		c.nextSweep = now.Add(c.idle)
	}

	b, found := c.buckets[key]
	if !found {
		b = &bucket{Limiter: rate.NewLimiter(c.rps, c.burst)}
		c.buckets[key] = b
	}
	b.touched = now

	res := b.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Len reports how many client buckets are live.
func (c *ClientLimiter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// clientKey is the remote host, without port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RateLimit rejects requests over the client's budget with 429. A nil limiter
// lets everything through.
func RateLimit(limiter *ClientLimiter, logger hclog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if ok, wait := limiter.Admit(key); !ok {
				retry := max(1, int(math.Ceil(wait.Seconds())))
				logger.Debug("rate limited", "client", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "too many booking requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
