package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pageforge/pageforge/src/database"
	"github.com/pageforge/pageforge/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertAuditRows appends n audit rows for a key with an explicit timestamp,
// bypassing Record so the window position is controlled.
func insertAuditRows(t *testing.T, tdb *database.TestDB, keyID uuid.UUID, n int, createdAt time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := tdb.Pool.Exec(context.Background(), `
			INSERT INTO audit_log (id, api_key_id, request_id, endpoint, status, pages_created, response_time, client_ip, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.New(), keyID, fmt.Sprintf("req_%016d", i), "/create-pages",
			string(models.AuditStatusSuccess), 1, 0.05, "127.0.0.1", createdAt)
		require.NoError(t, err)
	}
}

func TestAdmit_UnderLimit(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		rl := NewRateLimiter(tdb.Pool)
		keyID := uuid.New()

		insertAuditRows(t, tdb, keyID, 4, time.Now())

		ok, err := rl.Admit(ctx, keyID, 5)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestAdmit_AtLimit(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		rl := NewRateLimiter(tdb.Pool)
		keyID := uuid.New()

		insertAuditRows(t, tdb, keyID, 5, time.Now())

		ok, err := rl.Admit(ctx, keyID, 5)
		require.NoError(t, err)
		assert.False(t, ok, "sixth request within the hour must be denied")
	})
}

func TestAdmit_PerKeyIsolation(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		rl := NewRateLimiter(tdb.Pool)
		busy := uuid.New()
		quiet := uuid.New()

		insertAuditRows(t, tdb, busy, 5, time.Now())

		ok, err := rl.Admit(ctx, quiet, 5)
		require.NoError(t, err)
		assert.True(t, ok, "another key's traffic must not count against this one")
	})
}

func TestAdmit_WindowRolls(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		keyID := uuid.New()

		// Rows older than one hour fall out of the window
		insertAuditRows(t, tdb, keyID, 5, time.Now().Add(-61*time.Minute))

		rl := NewRateLimiter(tdb.Pool)
		ok, err := rl.Admit(ctx, keyID, 5)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestAdmit_ClockInjection(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		keyID := uuid.New()

		insertAuditRows(t, tdb, keyID, 5, time.Now())

		// With the clock at "now" the key is saturated
		rl := NewRateLimiterWithClock(tdb.Pool, time.Now)
		ok, err := rl.Admit(ctx, keyID, 5)
		require.NoError(t, err)
		assert.False(t, ok)

		// Two hours later every row has aged out
		later := NewRateLimiterWithClock(tdb.Pool, func() time.Time {
			return time.Now().Add(2 * time.Hour)
		})
		ok, err = later.Admit(ctx, keyID, 5)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestAdmit_ZeroLimitDeniesAll(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		rl := NewRateLimiter(tdb.Pool)
		ok, err := rl.Admit(context.Background(), uuid.New(), 0)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRetryAfter(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		rl := NewRateLimiter(tdb.Pool)
		keyID := uuid.New()

		// Oldest in-window row is 30 minutes old, so roughly 30 minutes remain
		insertAuditRows(t, tdb, keyID, 1, time.Now().Add(-30*time.Minute))

		wait, err := rl.RetryAfter(ctx, keyID)
		require.NoError(t, err)
		assert.Greater(t, wait, 25*time.Minute)
		assert.LessOrEqual(t, wait, rateLimitWindow)
	})
}

func TestRetryAfter_EmptyWindow(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		rl := NewRateLimiter(tdb.Pool)

		wait, err := rl.RetryAfter(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Equal(t, rateLimitWindow, wait)
	})
}
