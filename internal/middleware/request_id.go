package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDHeader is both the inbound header honored from clients and the
// outbound header echoed back on every response.
const requestIDHeader = "X-Request-ID"

// RequestID attaches a request id to each HTTP request so log lines from
// one request can be correlated. A client-supplied X-Request-ID is kept;
// otherwise a fresh UUID is minted. Handlers read it back with
// c.GetString("request_id"), and the access-log middleware includes it on
// every http_request line.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		c.Next()
	}
}
