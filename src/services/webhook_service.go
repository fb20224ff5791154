package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pageforge/pageforge/src/logging"
	"github.com/pageforge/pageforge/src/models"
	"github.com/rs/zerolog"
)

const (
	webhookTimeout    = 10 * time.Second
	webhookMaxRetries = 2 // 3 attempts total
	webhookUserAgent  = "PageForge-Webhook/1.0"
	webhookEventName  = "pages_created"

	// queueSize bounds pending notifications; beyond it Notify drops and logs
	queueSize = 256
)

// PageResult is the per-page shape both the API response and the webhook
// payload carry.
type PageResult struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// webhookPayload is the outbound notification body. Field order matters only
// in that the signature is computed over the exact marshaled bytes sent.
type webhookPayload struct {
	Event      string       `json:"event"`
	Timestamp  string       `json:"timestamp"`
	RequestID  string       `json:"request_id"`
	APIKeyName string       `json:"api_key_name"`
	TotalPages int          `json:"total_pages"`
	Pages      []PageResult `json:"pages"`
}

type notifyJob struct {
	requestID  string
	apiKeyName string
	pages      []PageResult
}

// WebhookNotifier delivers signed notifications after successful page
// creation. Delivery happens on a background worker so the request path only
// pays for a channel send; blocking retries (up to ~16s worst case) never
// hold an HTTP response.
type WebhookNotifier struct {
	pool      *pgxpool.Pool
	targetURL string
	secret    string
	client    *http.Client

	jobs chan notifyJob
	done chan struct{}
	log  zerolog.Logger

	// sleep is swappable so tests skip the backoff waits
	sleep func(time.Duration)
}

// NewWebhookNotifier creates a notifier. An empty targetURL disables
// delivery; Notify becomes a no-op and no records are written.
func NewWebhookNotifier(pool *pgxpool.Pool, targetURL, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		pool:      pool,
		targetURL: targetURL,
		secret:    secret,
		client:    &http.Client{Timeout: webhookTimeout},
		jobs:      make(chan notifyJob, queueSize),
		done:      make(chan struct{}),
		log:       logging.NewLogger("webhook"),
		sleep:     time.Sleep,
	}
}

// Start launches the delivery worker
func (wn *WebhookNotifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-wn.done:
				return
			case job := <-wn.jobs:
				wn.deliver(context.Background(), job)
			}
		}
	}()
}

// Stop terminates the delivery worker. Queued notifications are dropped;
// webhook delivery is best-effort by contract.
func (wn *WebhookNotifier) Stop() {
	close(wn.done)
}

// Notify hands a notification to the background worker and returns
// immediately. No-op when no target URL is configured.
func (wn *WebhookNotifier) Notify(requestID, apiKeyName string, pages []PageResult) {
	if wn.targetURL == "" {
		return
	}

	select {
	case wn.jobs <- notifyJob{requestID: requestID, apiKeyName: apiKeyName, pages: pages}:
	default:
		wn.log.Error().Str("request_id", requestID).Msg("webhook queue full, notification dropped")
	}
}

// QueuedJobs reports how many notifications are waiting for the worker
func (wn *WebhookNotifier) QueuedJobs() int {
	return len(wn.jobs)
}

// deliver performs the attempts and writes exactly one outcome row
func (wn *WebhookNotifier) deliver(ctx context.Context, job notifyJob) {
	payload := webhookPayload{
		Event:      webhookEventName,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  job.requestID,
		APIKeyName: job.apiKeyName,
		TotalPages: len(job.pages),
		Pages:      job.pages,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		wn.log.Error().Err(err).Str("request_id", job.requestID).Msg("failed to marshal webhook payload")
		return
	}

	// Sign the exact byte sequence that goes on the wire
	signature := GenerateSignature(body, wn.secret)

	var lastErr string
	for attempt := 0; attempt <= webhookMaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2^attempt seconds
			wn.sleep(time.Duration(1<<uint(attempt)) * time.Second)
		}

		respBody, err := wn.post(ctx, body, signature)
		if err == nil {
			wn.recordDelivery(ctx, job.requestID, models.DeliverySuccess, body, respBody)
			wn.log.Info().
				Str("request_id", job.requestID).
				Int("attempt", attempt+1).
				Msg("webhook delivered")
			return
		}
		lastErr = err.Error()
		wn.log.Warn().
			Str("request_id", job.requestID).
			Int("attempt", attempt+1).
			Str("error", lastErr).
			Msg("webhook delivery attempt failed")
	}

	wn.recordDelivery(ctx, job.requestID, models.DeliveryFailed, body, lastErr)
	wn.log.Error().Str("request_id", job.requestID).Str("error", lastErr).Msg("webhook delivery exhausted")
}

// post sends one attempt; any non-200 response is an error
func (wn *WebhookNotifier) post(ctx context.Context, body []byte, signature string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.targetURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := wn.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return string(respBody), nil
}

// recordDelivery writes the single outcome row for this delivery
func (wn *WebhookNotifier) recordDelivery(ctx context.Context, requestID string, status models.DeliveryStatus, payload []byte, responseOrError string) {
	_, err := wn.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, request_id, target_url, status, payload, response_or_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, uuid.New(), requestID, wn.targetURL, string(status), payload, responseOrError)
	if err != nil {
		wn.log.Error().Err(err).Str("request_id", requestID).Msg("failed to record webhook delivery")
	}
}

// ListDeliveries returns recent delivery outcomes, newest first. The limit
// is clamped like every other audit-surface query.
func (wn *WebhookNotifier) ListDeliveries(ctx context.Context, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	rows, err := wn.pool.Query(ctx, `
		SELECT id, request_id, target_url, status, payload, response_or_error, created_at
		FROM webhook_deliveries ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		d := &models.WebhookDelivery{}
		if err := rows.Scan(&d.ID, &d.RequestID, &d.TargetURL, &d.Status, &d.Payload, &d.ResponseOrError, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}

	return deliveries, rows.Err()
}

// GenerateSignature computes the hex HMAC-SHA256 of the payload bytes
func GenerateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature recomputes the HMAC and compares with a timing-safe
// equality check. Exposed for receiving-end parity; outbound delivery does
// not use it.
func VerifySignature(payload []byte, receivedSignature, secret string) bool {
	expected := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(receivedSignature), []byte(expected))
}
