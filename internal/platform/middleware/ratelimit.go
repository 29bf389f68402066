package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig bounds request throughput per client IP. Booking calls
// are cheap to retry, so over-limit requests get a 429 with a Retry-After
// hint rather than being queued.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig suits a single clinic gateway in front of the API.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// visitor is the token bucket of one client IP. Tokens refill lazily from
// the time elapsed since the previous request.
type visitor struct {
	tokens float64
	seen   time.Time
}

// visitorTTL is how long an idle client's bucket is kept before the next
// sweep discards it.
const visitorTTL = 10 * time.Minute

type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	cfg      RateLimitConfig
	sweepAt  time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		cfg:      cfg,
		sweepAt:  time.Now().Add(visitorTTL),
	}
}

// take consumes one token for ip. It reports whether the request may pass
// and, when it may not, how many seconds to wait before retrying.
func (l *rateLimiter) take(ip string) (ok bool, retryAfter int) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.sweepAt) {
		for k, v := range l.visitors {
			if now.Sub(v.seen) > visitorTTL {
				delete(l.visitors, k)
			}
		}
		l.sweepAt = now.Add(visitorTTL)
	}

	v, found := l.visitors[ip]
	if !found {
		v = &visitor{tokens: float64(l.cfg.BurstSize)}
		l.visitors[ip] = v
	} else {
		refill := now.Sub(v.seen).Seconds() * l.cfg.RequestsPerSecond
		v.tokens = math.Min(float64(l.cfg.BurstSize), v.tokens+refill)
	}
	v.seen = now

	if v.tokens < 1 {
		wait := 1
		if l.cfg.RequestsPerSecond > 0 {
			wait = int(math.Ceil((1 - v.tokens) / l.cfg.RequestsPerSecond))
		}
		return false, wait
	}
	v.tokens--
	return true, 0
}

// RateLimit throttles requests per client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	limiter := newRateLimiter(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			ok, retryAfter := limiter.take(c.RealIP())
			if !ok {
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
