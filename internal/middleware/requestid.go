package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
)

const ContextRequestID = "request_id"

// RequestID adds a unique request ID to each request and carries it, along
// with the caller's address, on the request context for audit records and
// outbound backend calls.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(httputil.RequestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(httputil.RequestIDHeader, rid)

		ctx := httputil.WithRequestID(c.Request.Context(), rid)
		ctx = httputil.WithClientInfo(ctx, httputil.ClientInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
