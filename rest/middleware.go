package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/npdadmin/syncengine/core"
)

// Authorizer decides whether a request may proceed. Authorization itself is
// a collaborator concern; a nil Authorizer admits every request.
type Authorizer interface {
	Authorize(ctx context.Context, r *http.Request) error
}

func authorize(authorizer Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authorizer == nil {
			c.Next()
			return
		}
		if err := authorizer.Authorize(c.Request.Context(), c.Request); err != nil {
			writeError(c, authorizationError(err))
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if logger == nil {
			c.Next()
			return
		}
		startedAt := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		}
		scoped := logger.WithContext(c.Request.Context())
		if c.Writer.Status() >= http.StatusInternalServerError {
			scoped.Error("request failed", fields...)
			return
		}
		scoped.Info("request completed", fields...)
	}
}
