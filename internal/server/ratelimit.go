package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	errx "github.com/bc-legal-assistant/server/internal/core/error"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
)

// Limiter decides whether the client identified by key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit rejects over-budget clients with 429. Limiter errors are logged
// and the request is let through.
func RateLimit(l Limiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIP(r, trustProxy)
			ok, err := l.Allow(r.Context(), ip)
			if err != nil {
				logx.Warn().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("rate limiter unavailable, allowing request")
				ok = true
			}
			if !ok {
				logx.Warn().Str("request_id", RequestIDFrom(r.Context())).Str("client", ip).Msg("rate limit exceeded")
				respondError(w, r, errx.RateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the socket peer unless proxy headers are trusted.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.SplitN(xff, ",", 2)
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryLimiter is a per-client token bucket kept in process memory.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*memoryEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	lastGC   time.Time
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter allows requests per window with bursts up to requests.
func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limiters: make(map[string]*memoryEntry),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		idle:     2 * window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.idle {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &memoryEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1), nil
}

// fixedWindowScript increments the window counter and sets its expiry on first use.
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n`)

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb redis.Scripter, requests int, window time.Duration) *RedisLimiter {
	switch {
	case window <= 0:
		window = time.Minute
	case window < time.Millisecond:
		// window keys are counted in whole milliseconds
		window = time.Millisecond
	}
	return &RedisLimiter{
		rdb:    rdb,
		limit:  int64(requests),
		window: window,
		prefix: "ratelimit",
		now:    time.Now,
	}
}

func (l *RedisLimiter) windowKey(client string) string {
	slot := l.now().UnixMilli() / l.window.Milliseconds()
	return fmt.Sprintf("%s:%s:%d", l.prefix, client, slot)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.windowKey(key)
	n, err := fixedWindowScript.Run(ctx, l.rdb, []string{k}, l.window.Milliseconds()).Int64()
	if err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to increment rate limit counter")
		return false, errx.WrapRedis(err)
	}
	return n <= l.limit, nil
}
