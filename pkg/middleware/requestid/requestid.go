// Package requestid tags each request with a correlation ID that the
// logger and response envelope pick up.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the correlation ID in both directions.
const Header = "X-Request-ID"

const (
	contextKey = "request_id"
	maxLen     = 128
)

// Middleware reuses the caller-supplied ID when one looks sane, otherwise
// mints a fresh UUID, and echoes the result on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" || len(id) > maxLen {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)

		c.Next()
	}
}

// Value returns the request's correlation ID, or "" outside the middleware.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
