package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents an API credential. The raw secret is never stored; only
// its SHA-256 hash and an 8-character preview survive creation.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	SecretHash string     `json:"-"` // never expose
	Preview    string     `json:"preview"`
	Status     string     `json:"status"` // active or revoked
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	UsageCount int64      `json:"usage_count"`
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by,omitempty"`
}

// IsActive returns true if the key has not been revoked.
func (k *APIKey) IsActive() bool {
	return k.Status == string(KeyStatusActive)
}

// IsExpired returns true if the key has an expiration in the past.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}
