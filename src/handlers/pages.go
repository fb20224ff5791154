package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pageforge/pageforge/src/middleware"
	"github.com/pageforge/pageforge/src/models"
	"github.com/pageforge/pageforge/src/services"
	"github.com/pageforge/pageforge/src/storage"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 10 * 1024 * 1024 // 10MB

// PageItem is one requested page within a batch
type PageItem struct {
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Status   string `json:"status,omitempty"`
	Slug     string `json:"slug,omitempty"`
	Template string `json:"template,omitempty"`
}

// CreatePagesRequest is the batch request body
type CreatePagesRequest struct {
	Pages []PageItem `json:"pages"`
}

// ItemError reports one failed item by its submitted index
type ItemError struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Error string `json:"error"`
}

// CreatePagesResponse is the batch result
type CreatePagesResponse struct {
	Success        bool                  `json:"success"`
	RequestID      string                `json:"request_id"`
	TotalRequested int                   `json:"total_requested"`
	Created        int                   `json:"created"`
	Failed         int                   `json:"failed"`
	Pages          []services.PageResult `json:"pages"`
	ResponseTime   float64               `json:"response_time"`
	Errors         []ItemError           `json:"errors,omitempty"`
}

// PagesHandler orchestrates batch page creation: the caller is already
// authenticated and admitted by the time it runs.
type PagesHandler struct {
	store    storage.PageStore
	audit    *services.AuditService
	notifier *services.WebhookNotifier
}

// NewPagesHandler creates a new pages handler
func NewPagesHandler(store storage.PageStore, audit *services.AuditService, notifier *services.WebhookNotifier) *PagesHandler {
	return &PagesHandler{store: store, audit: audit, notifier: notifier}
}

// newRequestID returns a batch request id like req_a1b2c3d4e5f60718
func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("failed to generate request id: " + err.Error())
	}
	return "req_" + hex.EncodeToString(buf)
}

// HandleCreatePages processes a batch page-creation request. Per-item
// failures never abort the batch; the endpoint answers 200 for any
// processable batch, including one where every item failed, and the
// aggregate status in the audit trail distinguishes the outcomes.
func (ph *PagesHandler) HandleCreatePages(c *gin.Context) {
	start := time.Now()
	requestID := newRequestID()
	key := middleware.GetAPIKey(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > maxBodySize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large (max 10MB)"})
		return
	}

	// An empty pages array is a valid (if pointless) batch and still gets a
	// 200 and an audit row; only a missing or non-array pages field is a 400
	var req CreatePagesRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Pages == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  string(services.ErrValidation),
			"error": `invalid request format. Expected: {"pages": [{"title": "...", "content": "...", "status": "..."}]}`,
		})
		return
	}

	// Once creation starts, a client disconnect must not abort the rest of
	// the batch or lose the audit row: pages already committed would become
	// invisible to the trail and the admission count. Writes run detached
	// from the request context.
	opCtx := context.WithoutCancel(c.Request.Context())

	created := make([]services.PageResult, 0, len(req.Pages))
	var itemErrors []ItemError

	// Items are processed in submitted order; error indices refer to that order
	for index, item := range req.Pages {
		if item.Title == "" {
			itemErrors = append(itemErrors, ItemError{Index: index, Error: "Title is required"})
			continue
		}

		page, err := ph.store.CreatePage(opCtx, storage.NewPage{
			Title:    item.Title,
			Content:  item.Content,
			Status:   item.Status,
			Slug:     item.Slug,
			Template: item.Template,
		})
		if err != nil {
			itemErrors = append(itemErrors, ItemError{Index: index, Title: item.Title, Error: err.Error()})
			continue
		}

		result := services.PageResult{ID: page.ID, Title: page.Title, URL: page.URL, Status: page.Status}
		created = append(created, result)

		record := &models.CreatedPage{
			PageID:    page.ID,
			Title:     page.Title,
			URL:       page.URL,
			RequestID: requestID,
		}
		if key != nil {
			keyID := key.ID
			record.APIKeyID = &keyID
		}
		if err := ph.audit.RecordCreatedPage(opCtx, record); err != nil {
			log.Error().Err(err).Str("request_id", requestID).Str("page_id", page.ID).Msg("failed to record created page")
		}
	}

	responseTime := time.Since(start).Seconds()

	response := CreatePagesResponse{
		Success:        true,
		RequestID:      requestID,
		TotalRequested: len(req.Pages),
		Created:        len(created),
		Failed:         len(itemErrors),
		Pages:          created,
		ResponseTime:   math.Round(responseTime*1000) / 1000,
		Errors:         itemErrors,
	}

	ph.recordAudit(opCtx, c, key, requestID, body, &response, responseTime)

	if len(created) > 0 && ph.notifier != nil {
		keyName := ""
		if key != nil {
			keyName = key.Name
		}
		ph.notifier.Notify(requestID, keyName, created)
	}

	c.JSON(http.StatusOK, response)
}

// recordAudit writes the single audit entry for the batch. Failures are
// surfaced to operational logging only; the response already computed is
// still returned to the caller.
func (ph *PagesHandler) recordAudit(ctx context.Context, c *gin.Context, key *models.APIKey, requestID string, requestBody []byte, response *CreatePagesResponse, responseTime float64) {
	status := models.AuditStatusSuccess
	switch {
	case response.Created == 0 && response.Failed > 0:
		status = models.AuditStatusFailed
	case response.Failed > 0:
		status = models.AuditStatusPartial
	}

	responsePayload, err := json.Marshal(response)
	if err != nil {
		responsePayload = nil
	}

	entry := &models.AuditEntry{
		RequestID:       requestID,
		Endpoint:        c.FullPath(),
		Status:          string(status),
		PagesCreated:    response.Created,
		ResponseTime:    responseTime,
		ClientIP:        c.ClientIP(),
		RequestPayload:  requestBody,
		ResponsePayload: responsePayload,
	}
	if key != nil {
		keyID := key.ID
		entry.APIKeyID = &keyID
	}

	if _, err := ph.audit.Record(ctx, entry); err != nil {
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("status", string(status)).
			Int("pages_created", response.Created).
			Msg("failed to record audit entry")
	}
}
