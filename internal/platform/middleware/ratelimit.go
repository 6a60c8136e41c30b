package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL evicts limiters that have not been used for this long.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 50, BurstSize: 100, IdleTTL: 10 * time.Minute}
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

type visitors struct {
	mu    sync.Mutex
	cfg   RateLimitConfig
	byKey map[string]*visitor
	swept time.Time
}

func newVisitors(cfg RateLimitConfig) *visitors {
	return &visitors{cfg: cfg, byKey: make(map[string]*visitor)}
}

func (v *visitors) get(key string, now time.Time) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cfg.IdleTTL > 0 && now.Sub(v.swept) > v.cfg.IdleTTL {
		for k, vis := range v.byKey {
			if now.Sub(vis.seen) > v.cfg.IdleTTL {
				delete(v.byKey, k)
			}
		}
		v.swept = now
	}

	vis, ok := v.byKey[key]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.BurstSize)}
		v.byKey[key] = vis
	}
	vis.seen = now
	return vis.limiter
}

// retryAfter is the whole number of seconds until l has a token, at least 1.
func retryAfter(l *rate.Limiter, now time.Time) int {
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return 1
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return int(math.Max(1, math.Ceil(delay.Seconds())))
}

// RateLimit applies a token bucket per client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	v := newVisitors(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			l := v.get(c.RealIP(), now)
			if !l.AllowN(now, 1) {
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("Retry-After", strconv.Itoa(retryAfter(l, now)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "demasiadas solicitudes")
			}
			return next(c)
		}
	}
}
