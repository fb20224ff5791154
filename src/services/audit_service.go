package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pageforge/pageforge/src/models"
)

// maxQueryLimit bounds audit query responses. Callers needing more must page
// externally; pagination is an extension point, not implemented here.
const maxQueryLimit = 100

// AuditFilter narrows audit queries
type AuditFilter struct {
	Status   string
	APIKeyID *uuid.UUID
	Limit    int
}

// AuditService owns the append-only audit log: one row per batch request,
// plus the created-page records correlated by request id. Rate limiting
// counts these rows, so inserts must never fail silently.
type AuditService struct {
	pool *pgxpool.Pool
}

// NewAuditService creates a new audit service
func NewAuditService(pool *pgxpool.Pool) *AuditService {
	return &AuditService{pool: pool}
}

// Record appends one audit entry and returns its id. Persistence failure is
// surfaced to the caller; the caller logs it and still answers the client.
func (as *AuditService) Record(ctx context.Context, entry *models.AuditEntry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	err := as.pool.QueryRow(ctx, `
		INSERT INTO audit_log (
			id, api_key_id, request_id, endpoint, status, pages_created,
			response_time, client_ip, request_payload, response_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at
	`, entry.ID, entry.APIKeyID, entry.RequestID, entry.Endpoint, entry.Status,
		entry.PagesCreated, entry.ResponseTime, entry.ClientIP,
		nullableJSON(entry.RequestPayload), nullableJSON(entry.ResponsePayload),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	return entry.ID, nil
}

// nullableJSON maps empty byte slices to NULL so JSONB columns stay valid
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Query returns audit entries newest first. The limit is clamped to 100.
func (as *AuditService) Query(ctx context.Context, filter AuditFilter) ([]*models.AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	query := `
		SELECT id, api_key_id, request_id, endpoint, status, pages_created,
		       response_time, client_ip, request_payload, response_payload, created_at
		FROM audit_log
	`
	clauses := []string{}
	args := []interface{}{}
	idx := 1

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.APIKeyID != nil {
		clauses = append(clauses, fmt.Sprintf("api_key_id = $%d", idx))
		args = append(args, *filter.APIKeyID)
		idx++
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := as.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0, limit)
	for rows.Next() {
		entry := &models.AuditEntry{}
		if err := rows.Scan(
			&entry.ID, &entry.APIKeyID, &entry.RequestID, &entry.Endpoint,
			&entry.Status, &entry.PagesCreated, &entry.ResponseTime,
			&entry.ClientIP, &entry.RequestPayload, &entry.ResponsePayload,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Stats aggregates the audit log, optionally scoped to one key
func (as *AuditService) Stats(ctx context.Context, apiKeyID *uuid.UUID) (*models.AuditStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(pages_created), 0),
			COALESCE(AVG(response_time), 0)
		FROM audit_log
	`
	args := []interface{}{}
	if apiKeyID != nil {
		query += " WHERE api_key_id = $1"
		args = append(args, *apiKeyID)
	}

	stats := &models.AuditStats{}
	err := as.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total, &stats.SuccessCount, &stats.FailureCount,
		&stats.TotalPagesCreated, &stats.AvgResponseTime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit stats: %w", err)
	}

	return stats, nil
}

// Purge deletes audit entries older than the cutoff and returns the count
func (as *AuditService) Purge(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	result, err := as.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit log: %w", err)
	}
	return result.RowsAffected(), nil
}

// RecordCreatedPage appends one created-page record within a batch
func (as *AuditService) RecordCreatedPage(ctx context.Context, page *models.CreatedPage) error {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}

	_, err := as.pool.Exec(ctx, `
		INSERT INTO created_pages (id, page_id, title, url, api_key_id, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, page.ID, page.PageID, page.Title, page.URL, page.APIKeyID, page.RequestID)
	if err != nil {
		return fmt.Errorf("failed to record created page: %w", err)
	}
	return nil
}

// ListCreatedPages returns created-page records for one request, in creation order
func (as *AuditService) ListCreatedPages(ctx context.Context, requestID string) ([]*models.CreatedPage, error) {
	rows, err := as.pool.Query(ctx, `
		SELECT id, page_id, title, url, api_key_id, request_id, created_at
		FROM created_pages WHERE request_id = $1 ORDER BY created_at ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query created pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.CreatedPage
	for rows.Next() {
		page := &models.CreatedPage{}
		if err := rows.Scan(&page.ID, &page.PageID, &page.Title, &page.URL, &page.APIKeyID, &page.RequestID, &page.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan created page: %w", err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}
