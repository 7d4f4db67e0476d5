// Package redislock serializes slot bookings across server instances with a
// Redis lease per key.
package redislock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease expired cannot free someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger hclog.Logger
}

type Option func(*Locker)

func WithPrefix(prefix string) Option {
	return func(l *Locker) { l.prefix = strings.Trim(prefix, ":") }
}

// WithRetry sets how often a busy key is polled.
func WithRetry(d time.Duration) Option {
	return func(l *Locker) { l.retry = d }
}

func WithLogger(logger hclog.Logger) Option {
	return func(l *Locker) { l.logger = logger }
}

// New returns a Locker whose leases expire after ttl. The lease only bounds
// how long a crashed holder blocks the key; storage still rejects stale
// writes by version.
func New(rdb redis.UniversalClient, ttl time.Duration, opts ...Option) *Locker {
	l := &Locker{
		rdb:    rdb,
		prefix: "restrobook:lock",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	full := l.prefix + ":" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(full, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
				l.logger.Warn("cannot release lock", "key", key, "error", err)
			}
		})
	}
}
