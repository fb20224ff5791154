package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rateLimitWindow is the trailing window admissions are counted over
const rateLimitWindow = time.Hour

// RateLimiter admits requests by counting audit entries per key over a
// trailing one-hour window. Counting persisted rows instead of an in-memory
// counter means the limit survives process restarts and holds across every
// instance sharing the datastore.
//
// Admit is check-then-act: the audit insert that eventually consumes the
// admission happens later in the request, so a burst of concurrent requests
// can slip slightly past the limit. This is an accepted soft limit.
type RateLimiter struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRateLimiter creates a rate limiter over the audit log
func NewRateLimiter(pool *pgxpool.Pool) *RateLimiter {
	return &RateLimiter{pool: pool, now: time.Now}
}

// NewRateLimiterWithClock creates a rate limiter with an injected clock,
// used by tests to roll the window.
func NewRateLimiterWithClock(pool *pgxpool.Pool, now func() time.Time) *RateLimiter {
	return &RateLimiter{pool: pool, now: now}
}

// Admit reports whether the key may proceed under the given hourly limit.
// The window is exclusive at the lower bound: created_at > now - 1h.
func (rl *RateLimiter) Admit(ctx context.Context, keyID uuid.UUID, limitPerHour int) (bool, error) {
	if limitPerHour <= 0 {
		return false, nil
	}

	cutoff := rl.now().Add(-rateLimitWindow)

	var count int
	err := rl.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_log WHERE api_key_id = $1 AND created_at > $2
	`, keyID, cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count requests in window: %w", err)
	}

	return count < limitPerHour, nil
}

// RetryAfter returns how long until the oldest in-window entry rolls out of
// the window, i.e. when the next request could be admitted. Returns the full
// window as a conservative fallback when nothing is found.
func (rl *RateLimiter) RetryAfter(ctx context.Context, keyID uuid.UUID) (time.Duration, error) {
	now := rl.now()
	cutoff := now.Add(-rateLimitWindow)

	// MIN over zero rows yields NULL, hence the pointer scan
	var oldest *time.Time
	err := rl.pool.QueryRow(ctx, `
		SELECT MIN(created_at) FROM audit_log WHERE api_key_id = $1 AND created_at > $2
	`, keyID, cutoff).Scan(&oldest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rateLimitWindow, nil
		}
		return rateLimitWindow, fmt.Errorf("failed to find oldest request in window: %w", err)
	}
	if oldest == nil {
		return rateLimitWindow, nil
	}

	remaining := oldest.Add(rateLimitWindow).Sub(now)
	if remaining < time.Second {
		remaining = time.Second
	}
	return remaining, nil
}
