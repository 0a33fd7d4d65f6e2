// README: Request logging middleware (method, route, status, latency) on the shared slog logger.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"ridebook/internal/logging"
)

func Logging(log *slog.Logger) gin.HandlerFunc {
	log = logging.Action(log, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if uid := CallerUID(c); uid != "" {
			attrs = append(attrs, "uid", uid)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		if c.Writer.Status() >= 500 {
			log.Error("request failed", attrs...)
			return
		}
		log.Info("request", attrs...)
	}
}
