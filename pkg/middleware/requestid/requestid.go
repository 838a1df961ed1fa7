package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the wire name for request correlation IDs.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Inbound IDs longer than this are replaced; they would bloat every log line.
const maxInboundLength = 64

// Middleware tags every request with a correlation ID, reusing a reasonable
// inbound X-Request-ID when a gateway already assigned one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" || len(id) > maxInboundLength {
			id = uuid.NewString()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the request ID stored in the gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
