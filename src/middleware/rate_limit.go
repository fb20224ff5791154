package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pageforge/pageforge/src/services"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware enforces the per-key sliding-window limit by counting
// audit entries. Must run after APIKeyAuthMiddleware.
func RateLimitMiddleware(limiter *services.RateLimiter, limitPerHour int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetAPIKey(c)
		if key == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key context"})
			c.Abort()
			return
		}

		admitted, err := limiter.Admit(c.Request.Context(), key.ID, limitPerHour)
		if err != nil {
			log.Error().Err(err).Str("api_key_id", key.ID.String()).Msg("rate limit check failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  string(services.ErrStorage),
				"error": "failed to check rate limit",
			})
			c.Abort()
			return
		}

		if !admitted {
			retryAfter, raErr := limiter.RetryAfter(c.Request.Context(), key.ID)
			if raErr != nil {
				retryAfter = time.Hour
			}
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":        string(services.ErrRateLimit),
				"error":       "rate limit exceeded",
				"retry_after": seconds,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// limiterEntry holds a token-bucket limiter with its last-used timestamp
type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// ipRateLimiter manages per-IP limiters. Used on the admin login endpoint to
// slow brute forcing; the API-key window limiter above is a separate
// mechanism. Stale entries are swept opportunistically on access, so there is
// no background goroutine to manage.
type ipRateLimiter struct {
	limiters  map[string]*limiterEntry
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters:  make(map[string]*limiterEntry),
		limit:     limit,
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastSweep) > 5*time.Minute {
		l.sweepLocked()
		l.lastSweep = time.Now()
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastUsed = time.Now()
	return entry.limiter
}

// sweepLocked drops entries not used in the last 10 minutes. Caller holds mu.
func (l *ipRateLimiter) sweepLocked() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// AdminLoginRateLimitMiddleware allows 3 login attempts per minute per IP
func AdminLoginRateLimitMiddleware() gin.HandlerFunc {
	limiter := newIPRateLimiter(rate.Every(time.Minute/3), 1)

	return func(c *gin.Context) {
		if !limiter.getLimiter(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts, try again later",
				"retry_after": 60,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
