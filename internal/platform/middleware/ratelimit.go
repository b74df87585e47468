package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration for the public turn
// endpoint.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings. A triage
// conversation is one request every few seconds, so the bounds are tight
// compared to a general API.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
	}
}

// clientBucket tracks one client IP's remaining allowance as a fractional
// token count refilled continuously since the last request.
type clientBucket struct {
	remaining float64
	lastSeen  time.Time
}

// take refills the bucket for the elapsed time and consumes one token,
// reporting whether the request is allowed.
func (b *clientBucket) take(now time.Time, cfg RateLimitConfig) bool {
	b.remaining += now.Sub(b.lastSeen).Seconds() * cfg.RequestsPerSecond
	if max := float64(cfg.BurstSize); b.remaining > max {
		b.remaining = max
	}
	b.lastSeen = now

	if b.remaining < 1 {
		return false
	}
	b.remaining--
	return true
}

// staleAfter is how long an idle client's bucket is kept before pruning.
const staleAfter = 10 * time.Minute

// RateLimit limits requests per client IP with a token bucket. Idle clients
// are pruned whenever the map grows past a threshold, so an address scan
// cannot grow it without bound.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	var mu sync.Mutex
	buckets := make(map[string]*clientBucket)

	prune := func(now time.Time) {
		for ip, b := range buckets {
			if now.Sub(b.lastSeen) > staleAfter {
				delete(buckets, ip)
			}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			ip := c.RealIP()

			mu.Lock()
			b, ok := buckets[ip]
			if !ok {
				if len(buckets) > 10000 {
					prune(now)
				}
				b = &clientBucket{remaining: float64(cfg.BurstSize), lastSeen: now}
				buckets[ip] = b
			}
			allowed := b.take(now, cfg)
			mu.Unlock()

			if !allowed {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
