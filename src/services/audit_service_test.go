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

func TestRecordAndQuery(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAuditService(tdb.Pool)
		keyID := uuid.New()

		entry := &models.AuditEntry{
			APIKeyID:        &keyID,
			RequestID:       "req_aaaaaaaaaaaaaaaa",
			Endpoint:        "/create-pages",
			Status:          string(models.AuditStatusSuccess),
			PagesCreated:    3,
			ResponseTime:    0.123,
			ClientIP:        "203.0.113.9",
			RequestPayload:  []byte(`{"pages":[{"title":"A"}]}`),
			ResponsePayload: []byte(`{"success":true}`),
		}
		id, err := as.Record(ctx, entry)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.False(t, entry.CreatedAt.IsZero())

		entries, err := as.Query(ctx, AuditFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 1)

		got := entries[0]
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "req_aaaaaaaaaaaaaaaa", got.RequestID)
		assert.Equal(t, 3, got.PagesCreated)
		require.NotNil(t, got.APIKeyID)
		assert.Equal(t, keyID, *got.APIKeyID)
		assert.JSONEq(t, `{"success":true}`, string(got.ResponsePayload))
	})
}

func TestRecord_NilPayloads(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		as := NewAuditService(tdb.Pool)

		// No key, no payloads: an unauthenticated failure still gets a row
		_, err := as.Record(context.Background(), &models.AuditEntry{
			RequestID: "req_bbbbbbbbbbbbbbbb",
			Endpoint:  "/create-pages",
			Status:    string(models.AuditStatusFailed),
		})
		require.NoError(t, err)
	})
}

func TestQuery_Filters(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAuditService(tdb.Pool)
		keyA := uuid.New()
		keyB := uuid.New()

		for i, tc := range []struct {
			key    uuid.UUID
			status models.AuditStatus
		}{
			{keyA, models.AuditStatusSuccess},
			{keyA, models.AuditStatusFailed},
			{keyB, models.AuditStatusSuccess},
		} {
			_, err := as.Record(ctx, &models.AuditEntry{
				APIKeyID:  &tc.key,
				RequestID: fmt.Sprintf("req_filter_%d", i),
				Endpoint:  "/create-pages",
				Status:    string(tc.status),
			})
			require.NoError(t, err)
		}

		byStatus, err := as.Query(ctx, AuditFilter{Status: string(models.AuditStatusSuccess)})
		require.NoError(t, err)
		assert.Len(t, byStatus, 2)

		byKey, err := as.Query(ctx, AuditFilter{APIKeyID: &keyA})
		require.NoError(t, err)
		assert.Len(t, byKey, 2)

		both, err := as.Query(ctx, AuditFilter{Status: string(models.AuditStatusFailed), APIKeyID: &keyA})
		require.NoError(t, err)
		require.Len(t, both, 1)
		assert.Equal(t, string(models.AuditStatusFailed), both[0].Status)
	})
}

func TestQuery_LimitClamp(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAuditService(tdb.Pool)

		for i := 0; i < 5; i++ {
			_, err := as.Record(ctx, &models.AuditEntry{
				RequestID: "req_clamp",
				Endpoint:  "/create-pages",
				Status:    string(models.AuditStatusSuccess),
			})
			require.NoError(t, err)
		}

		limited, err := as.Query(ctx, AuditFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		// Out-of-range limits fall back to the cap rather than erroring
		all, err := as.Query(ctx, AuditFilter{Limit: 10000})
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})
}

func TestStats(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAuditService(tdb.Pool)
		keyID := uuid.New()

		for _, e := range []struct {
			status models.AuditStatus
			pages  int
			rt     float64
		}{
			{models.AuditStatusSuccess, 3, 0.1},
			{models.AuditStatusSuccess, 2, 0.3},
			{models.AuditStatusPartial, 1, 0.2},
			{models.AuditStatusFailed, 0, 0.4},
		} {
			_, err := as.Record(ctx, &models.AuditEntry{
				APIKeyID:     &keyID,
				RequestID:    "req_stats",
				Endpoint:     "/create-pages",
				Status:       string(e.status),
				PagesCreated: e.pages,
				ResponseTime: e.rt,
			})
			require.NoError(t, err)
		}

		stats, err := as.Stats(ctx, &keyID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), stats.Total)
		assert.Equal(t, int64(2), stats.SuccessCount)
		assert.Equal(t, int64(1), stats.FailureCount)
		assert.Equal(t, int64(6), stats.TotalPagesCreated)
		assert.InDelta(t, 0.25, stats.AvgResponseTime, 0.001)
	})
}

func TestStats_Empty(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		as := NewAuditService(tdb.Pool)

		stats, err := as.Stats(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Total)
		assert.Equal(t, float64(0), stats.AvgResponseTime)
	})
}

func TestPurge(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAuditService(tdb.Pool)
		keyID := uuid.New()

		insertAuditRows(t, tdb, keyID, 3, time.Now().Add(-100*24*time.Hour))
		insertAuditRows(t, tdb, keyID, 2, time.Now())

		deleted, err := as.Purge(ctx, 90)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		remaining, err := as.Query(ctx, AuditFilter{})
		require.NoError(t, err)
		assert.Len(t, remaining, 2)
	})
}

func TestPurge_NonPositiveRetentionIsNoOp(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		as := NewAuditService(tdb.Pool)

		insertAuditRows(t, tdb, uuid.New(), 1, time.Now().Add(-100*24*time.Hour))

		deleted, err := as.Purge(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
	})
}

func TestCreatedPages_RecordAndList(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		as := NewAuditService(tdb.Pool)
		keyID := uuid.New()

		for _, p := range []struct{ pageID, title string }{
			{"101", "First"},
			{"102", "Second"},
		} {
			err := as.RecordCreatedPage(ctx, &models.CreatedPage{
				PageID:    p.pageID,
				Title:     p.title,
				URL:       "http://example.test/pages/" + p.pageID,
				APIKeyID:  &keyID,
				RequestID: "req_pages",
			})
			require.NoError(t, err)
		}

		pages, err := as.ListCreatedPages(ctx, "req_pages")
		require.NoError(t, err)
		require.Len(t, pages, 2)
		assert.Equal(t, "First", pages[0].Title)
		assert.Equal(t, "Second", pages[1].Title)

		none, err := as.ListCreatedPages(ctx, "req_other")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
