package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pageforge/pageforge/src/models"
	"github.com/pageforge/pageforge/src/services"
)

// APIKeyContextKey is where authenticated key metadata lands in the gin context
const APIKeyContextKey = "api_key"

// ExtractAPIKey reads the presented secret from X-API-Key, falling back to
// Authorization: Bearer. X-API-Key wins when both are present.
func ExtractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	auth := c.GetHeader("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// APIKeyAuthMiddleware authenticates batch requests. It rejects with 503
// when the API is globally disabled, 401 when the secret is missing, unknown,
// revoked or expired. The validated key is stored in the context.
func APIKeyAuthMiddleware(keyService *services.KeyService, apiEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !apiEnabled {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"code":  string(services.ErrServiceDisabled),
				"error": "API access is currently disabled",
			})
			c.Abort()
			return
		}

		rawSecret := ExtractAPIKey(c)
		if rawSecret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":  string(services.ErrAuth),
				"error": "API key is required. Provide it in the X-API-Key header or as Authorization: Bearer",
			})
			c.Abort()
			return
		}

		key, err := keyService.Validate(c.Request.Context(), rawSecret)
		if err != nil {
			if errors.Is(err, services.ErrKeyNotFound) ||
				errors.Is(err, services.ErrKeyRevoked) ||
				errors.Is(err, services.ErrKeyExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"code":  string(services.ErrAuth),
					"error": "invalid or expired API key",
				})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{
					"code":  string(services.ErrStorage),
					"error": "failed to validate API key",
				})
			}
			c.Abort()
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// GetAPIKey retrieves the authenticated key from the context
func GetAPIKey(c *gin.Context) *models.APIKey {
	if v, exists := c.Get(APIKeyContextKey); exists {
		if key, ok := v.(*models.APIKey); ok {
			return key
		}
	}
	return nil
}

// AdminClaims represents JWT claims for admin users
type AdminClaims struct {
	AdminID  string `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateAdminToken creates a JWT token for an admin user
func GenerateAdminToken(jwtSecret string, adminID uuid.UUID, username string) (string, error) {
	claims := AdminClaims{
		AdminID:  adminID.String(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pageforge",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// ValidateAdminToken verifies a JWT token and returns its claims
func ValidateAdminToken(jwtSecret, tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return claims, nil
}

// AdminAuthMiddleware checks for a valid JWT token in the cookie or the
// Authorization header
func AdminAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		cookie, err := c.Cookie("admin_token")
		if err == nil {
			token = cookie
		}

		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					token = parts[1]
				}
			}
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
			c.Abort()
			return
		}

		claims, err := ValidateAdminToken(jwtSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("admin_id", claims.AdminID)
		c.Set("username", claims.Username)
		c.Next()
	}
}
