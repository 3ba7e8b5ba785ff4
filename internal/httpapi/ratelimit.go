package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/taskmesh/taskmesh-api/internal/auth"
	"github.com/taskmesh/taskmesh-api/internal/config"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter answers whether one more request is allowed for a (scope,
// key) pair. Scope is the throttle class (sync_push, sync_pull,
// conflict_resolution); key identifies the caller.
type Limiter interface {
	Allow(ctx context.Context, scope string, key string, limit config.RateLimit) (Decision, error)
}

// ---------------------------------------------------------------------------
// In-process limiter: per-key token bucket.
// Burst traffic is allowed up to the bucket capacity; the long-term
// rate is MaxRequests per window. Used when no Redis URL is configured,
// and as the single-instance default.
// ---------------------------------------------------------------------------

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(capacity int, refillRate float64) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// take refills by elapsed time, then consumes one token if available.
func (tb *tokenBucket) take() (allowed bool, remaining int, retryAfter time.Duration, resetAt time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	// When the bucket will be full again.
	resetAt = now.Add(time.Duration((tb.capacity - tb.tokens) / tb.refillRate * float64(time.Second)))

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, int(tb.tokens), 0, resetAt
	}

	wait := time.Duration((1.0 - tb.tokens) / tb.refillRate * float64(time.Second))
	return false, 0, wait, resetAt
}

// LocalLimiter keeps one token bucket per (scope, key). Stale buckets
// are swept in the background so idle callers do not accumulate.
type LocalLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
}

// NewLocalLimiter starts the stale-bucket sweeper and returns the
// limiter.
func NewLocalLimiter() *LocalLimiter {
	l := &LocalLimiter{buckets: make(map[string]*tokenBucket)}
	go l.sweep()
	return l
}

func (l *LocalLimiter) bucket(scope, key string, limit config.RateLimit) *tokenBucket {
	id := scope + ":" + key

	l.mu.RLock()
	b, ok := l.buckets[id]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[id]; ok {
		return b
	}
	refill := float64(limit.MaxRequests) / float64(limit.WindowSeconds)
	b = newTokenBucket(limit.Burst, refill)
	l.buckets[id] = b
	return b
}

// Allow implements Limiter.
func (l *LocalLimiter) Allow(_ context.Context, scope, key string, limit config.RateLimit) (Decision, error) {
	allowed, remaining, retryAfter, resetAt := l.bucket(scope, key, limit).take()
	return Decision{
		Allowed:    allowed,
		Limit:      limit.MaxRequests,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}, nil
}

func (l *LocalLimiter) sweep() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for id, b := range l.buckets {
			b.mu.Lock()
			idle := time.Since(b.lastRefill) > time.Hour
			b.mu.Unlock()
			if idle {
				delete(l.buckets, id)
			}
		}
		l.mu.Unlock()
	}
}

// ---------------------------------------------------------------------------
// Redis limiter: fixed-window counter shared across instances.
// ---------------------------------------------------------------------------

// RedisLimiter counts requests in ratelimit:{scope}:{key} with a TTL of
// one window. INCR creates the key at 1; the first increment sets the
// expiry.
type RedisLimiter struct {
	Client *redis.Client
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, scope, key string, limit config.RateLimit) (Decision, error) {
	rkey := fmt.Sprintf("ratelimit:%s:%s", scope, key)

	n, err := l.Client.Incr(ctx, rkey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit incr %s: %w", rkey, err)
	}
	if n == 1 {
		if err := l.Client.Expire(ctx, rkey, limit.Window()).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit expire %s: %w", rkey, err)
		}
	}

	ttl, err := l.Client.TTL(ctx, rkey).Result()
	if err != nil || ttl < 0 {
		ttl = limit.Window()
	}

	d := Decision{
		Allowed:   n <= int64(limit.MaxRequests),
		Limit:     limit.MaxRequests,
		Remaining: limit.MaxRequests - int(n),
		ResetAt:   time.Now().Add(ttl),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// Throttle enforces the scope's limit per authenticated user, falling
// back to the client address for unauthenticated callers. Backend
// errors fail open: a broken limiter must not take the API down.
func (s *Server) Throttle(scope string, limit config.RateLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if p, ok := auth.FromContext(r.Context()); ok {
				key = p.UserID.String()
			}

			d, err := s.Limiter.Allow(r.Context(), scope, key, limit)
			if err != nil {
				log.Ctx(r.Context()).Error().Err(err).
					Str("scope", scope).
					Msg("rate limiter unavailable, failing open")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retry := int(d.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				log.Ctx(r.Context()).Warn().
					Str("scope", scope).
					Str("key", key).
					Int("retryAfter", retry).
					Msg("rate limit exceeded")
				writeError(w, r, http.StatusTooManyRequests, CodeRateLimited,
					"Rate limit exceeded. Retry after "+strconv.Itoa(retry)+" seconds.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
