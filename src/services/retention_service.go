package services

import (
	"context"
	"time"

	"github.com/pageforge/pageforge/src/logging"
	"github.com/rs/zerolog"
)

// RetentionService purges audit entries older than the configured horizon
// once a day.
type RetentionService struct {
	audit         *AuditService
	enabled       bool
	retentionDays int
	interval      time.Duration
	done          chan struct{}
	log           zerolog.Logger
}

// NewRetentionService creates a new retention service
func NewRetentionService(audit *AuditService, enabled bool, retentionDays int) *RetentionService {
	return &RetentionService{
		audit:         audit,
		enabled:       enabled,
		retentionDays: retentionDays,
		interval:      24 * time.Hour,
		done:          make(chan struct{}),
		log:           logging.NewLogger("retention"),
	}
}

// Start starts the retention loop
func (rs *RetentionService) Start(ctx context.Context) {
	if !rs.enabled {
		rs.log.Info().Msg("audit retention service is disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(rs.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				rs.log.Info().Msg("retention service stopped")
				return
			case <-rs.done:
				rs.log.Info().Msg("retention service stopped")
				return
			case <-ticker.C:
				rs.purge(ctx)
			}
		}
	}()

	rs.log.Info().Int("retention_days", rs.retentionDays).Msg("audit retention service started")
}

// Stop stops the retention loop. Safe to call when the loop never started.
func (rs *RetentionService) Stop() {
	close(rs.done)
}

func (rs *RetentionService) purge(ctx context.Context) {
	deleted, err := rs.audit.Purge(ctx, rs.retentionDays)
	if err != nil {
		rs.log.Error().Err(err).Msg("audit purge failed")
		return
	}
	if deleted > 0 {
		rs.log.Info().Int64("deleted", deleted).Msg("purged old audit entries")
	}
}
