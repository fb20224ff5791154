package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one append-only row per batch request. It is the source of
// truth for rate limiting and statistics, so it is written even when the
// batch itself failed.
type AuditEntry struct {
	ID              uuid.UUID  `json:"id"`
	APIKeyID        *uuid.UUID `json:"api_key_id,omitempty"` // nullable: keys may be deleted externally
	RequestID       string     `json:"request_id"`
	Endpoint        string     `json:"endpoint"`
	Status          string     `json:"status"` // success, partial_success or failed
	PagesCreated    int        `json:"pages_created"`
	ResponseTime    float64    `json:"response_time"` // seconds
	ClientIP        string     `json:"client_ip,omitempty"`
	RequestPayload  []byte     `json:"request_payload,omitempty"`
	ResponsePayload []byte     `json:"response_payload,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AuditStats aggregates audit entries, optionally scoped to one key.
type AuditStats struct {
	Total             int64   `json:"total"`
	SuccessCount      int64   `json:"success_count"`
	FailureCount      int64   `json:"failure_count"`
	TotalPagesCreated int64   `json:"total_pages_created"`
	AvgResponseTime   float64 `json:"avg_response_time"`
}
