package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pageforge/pageforge/src/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionPurge(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		audit := NewAuditService(tdb.Pool)
		rs := NewRetentionService(audit, true, 90)

		keyID := uuid.New()
		insertAuditRows(t, tdb, keyID, 2, time.Now().Add(-91*24*time.Hour))
		insertAuditRows(t, tdb, keyID, 1, time.Now())

		rs.purge(ctx)

		entries, err := audit.Query(ctx, AuditFilter{})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestRetentionStop_WithoutStart(t *testing.T) {
	rs := NewRetentionService(nil, false, 90)
	rs.Start(context.Background()) // disabled: no loop runs

	done := make(chan struct{})
	go func() {
		rs.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked with the retention loop disabled")
	}
}
