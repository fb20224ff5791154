package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is where the per-request correlation id lives in the gin
// context. Distinct from the batch request_id the pages handler mints for its
// audit trail; this one correlates log lines, not audit rows.
const RequestIDKey = "request_id"

// maxInboundRequestIDLen caps ids accepted from proxies so a hostile header
// cannot blow up log cardinality
const maxInboundRequestIDLen = 64

// RequestIDMiddleware tags every request with a correlation id, honoring an
// inbound X-Request-ID from upstream proxies and echoing it back.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if len(requestID) > maxInboundRequestIDLen {
			requestID = requestID[:maxInboundRequestIDLen]
		}
		if requestID == "" {
			// Short id: log correlation does not need full UUID entropy
			requestID = uuid.New().String()[:8]
		}

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// GetRequestID retrieves the correlation id from the context
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		return id.(string)
	}
	return ""
}
