package models

import (
	"time"

	"github.com/google/uuid"
)

// CreatedPage records one successfully created page within a batch. The
// referenced page may be deleted later by the external engine; the record
// stays and consumers treat the page as missing, not as an error.
type CreatedPage struct {
	ID        uuid.UUID  `json:"id"`
	PageID    string     `json:"page_id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	APIKeyID  *uuid.UUID `json:"api_key_id,omitempty"`
	RequestID string     `json:"request_id"`
	CreatedAt time.Time  `json:"created_at"`
}
