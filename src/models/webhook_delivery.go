package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookDelivery records the final outcome of a notification, one row per
// delivery (not per attempt).
type WebhookDelivery struct {
	ID              uuid.UUID `json:"id"`
	RequestID       string    `json:"request_id"`
	TargetURL       string    `json:"target_url"`
	Status          string    `json:"status"` // success or failed
	Payload         []byte    `json:"payload,omitempty"`
	ResponseOrError string    `json:"response_or_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
