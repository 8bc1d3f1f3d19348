package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"cv-parser/internal/shared/server/respond"
	"cv-parser/internal/shared/telemetry"
)

// maxPanicValueBytes caps the logged panic value; the stack carries the rest.
const maxPanicValueBytes = 256

// Recovery turns a handler panic into a 500 with the standard error body.
// Request bodies and headers are never logged: they can carry the session's
// API credential.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			telemetry.Error("request.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"session_id": SessionIDFromContext(c),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"panic":      panicValue(rec),
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}

func panicValue(rec any) string {
	msg := fmt.Sprint(rec)
	if len(msg) > maxPanicValueBytes {
		msg = msg[:maxPanicValueBytes] + "..."
	}
	return msg
}
