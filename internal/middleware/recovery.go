package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a panic into the generic 500 envelope. The stack is logged
// only at debug level.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			event := log.Error().
				Interface("panic", r).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Str("request_id", c.Writer.Header().Get(requestIDHeader))
			if zerolog.GlobalLevel() <= zerolog.DebugLevel {
				event = event.Bytes("stack", debug.Stack())
			}
			event.Msg("panic recovered")

			abort(c, http.StatusInternalServerError, CodeInternal, "Internal server error")
		}()
		c.Next()
	}
}
