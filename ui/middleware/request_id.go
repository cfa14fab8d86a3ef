package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request ID in both directions
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key holding the request ID
	RequestIDKey = "request_id"
)

// RequestID tags every request with a UUID. A valid UUID sent by the caller is kept so IDs can
// be followed across a proxy.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the ID set by RequestID, or "" outside of it
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// LogServerErrors logs responses that finished with a 5xx status together with their request ID
func LogServerErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			log.Printf("[RequestID] %s %s %s -> %d %v", GetRequestID(c), c.Request.Method, c.Request.URL.Path, status, c.Errors.ByType(gin.ErrorTypeAny))
		}
	}
}
