package middleware

import (
	"cashbox_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's X-Request-ID when it is a UUID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(requestIDHeader))
		if err != nil {
			id = uuid.New()
		}
		c.Set(utils.RequestIDKey, id.String())
		c.Header(requestIDHeader, id.String())
		c.Next()
	}
}
