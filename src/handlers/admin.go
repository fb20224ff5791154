package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pageforge/pageforge/src/middleware"
	"github.com/pageforge/pageforge/src/services"
	"github.com/rs/zerolog/log"
)

// AdminHandler serves the management API: operator login plus key and audit
// administration. All routes except login sit behind AdminAuthMiddleware.
type AdminHandler struct {
	adminService *services.AdminService
	keyService   *services.KeyService
	auditService *services.AuditService
	notifier     *services.WebhookNotifier
	jwtSecret    string
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *services.AdminService, keyService *services.KeyService, auditService *services.AuditService, notifier *services.WebhookNotifier, jwtSecret string) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		keyService:   keyService,
		auditService: auditService,
		notifier:     notifier,
		jwtSecret:    jwtSecret,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin authenticates an operator and issues a JWT session token
func (ah *AdminHandler) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	admin, err := ah.adminService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		} else {
			log.Error().Err(err).Msg("admin authentication failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		}
		return
	}

	token, err := middleware.GenerateAdminToken(ah.jwtSecret, admin.ID, admin.Username)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate admin token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.SetCookie("admin_token", token, int(24*time.Hour/time.Second), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token, "username": admin.Username})
}

// HandleLogout clears the session cookie
func (ah *AdminHandler) HandleLogout(c *gin.Context) {
	c.SetCookie("admin_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// HandleStatus confirms the session is valid
func (ah *AdminHandler) HandleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authenticated":   true,
		"username":        c.GetString("username"),
		"webhook_backlog": ah.notifier.QueuedJobs(),
	})
}

type generateKeyRequest struct {
	Name      string     `json:"name" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// HandleGenerateKey creates a new API key. The raw secret appears in this
// response and nowhere else, ever.
func (ah *AdminHandler) HandleGenerateKey(c *gin.Context) {
	var req generateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key name is required"})
		return
	}

	raw, key, err := ah.keyService.Generate(c.Request.Context(), req.Name, req.ExpiresAt, c.GetString("username"))
	if err != nil {
		if errors.Is(err, services.ErrNameRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			log.Error().Err(err).Msg("failed to generate api key")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate API key"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"api_key": raw, // shown exactly once
		"key":     key,
		"message": "Store this key now. It cannot be retrieved again.",
	})
}

// HandleListKeys returns keys newest first, optionally filtered by ?status=
func (ah *AdminHandler) HandleListKeys(c *gin.Context) {
	keys, err := ah.keyService.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		log.Error().Err(err).Msg("failed to list api keys")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "total": len(keys)})
}

// HandleRevokeKey revokes a key. Revoking twice is fine.
func (ah *AdminHandler) HandleRevokeKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return
	}

	found, err := ah.keyService.Revoke(c.Request.Context(), keyID)
	if err != nil {
		log.Error().Err(err).Str("key_id", keyID.String()).Msg("failed to revoke api key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke key"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "revoked", "key_id": keyID})
}

// HandleKeyStats returns audit aggregates scoped to one key
func (ah *AdminHandler) HandleKeyStats(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
		return
	}

	stats, err := ah.auditService.Stats(c.Request.Context(), &keyID)
	if err != nil {
		log.Error().Err(err).Str("key_id", keyID.String()).Msg("failed to compute key stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// HandleQueryLogs returns audit entries filtered by ?status=, ?api_key_id=
// and ?limit= (clamped to 100), newest first
func (ah *AdminHandler) HandleQueryLogs(c *gin.Context) {
	filter := services.AuditFilter{Status: c.Query("status")}

	if raw := c.Query("api_key_id"); raw != "" {
		keyID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid api_key_id"})
			return
		}
		filter.APIKeyID = &keyID
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}

	entries, err := ah.auditService.Query(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to query audit log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": entries, "total": len(entries)})
}

// HandleLogStats returns audit aggregates across all keys
func (ah *AdminHandler) HandleLogStats(c *gin.Context) {
	stats, err := ah.auditService.Stats(c.Request.Context(), nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to compute audit stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleListWebhookDeliveries returns recent webhook delivery outcomes
func (ah *AdminHandler) HandleListWebhookDeliveries(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	deliveries, err := ah.notifier.ListDeliveries(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list webhook deliveries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list deliveries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries, "total": len(deliveries)})
}
