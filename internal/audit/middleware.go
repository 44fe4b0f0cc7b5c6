package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// WriteMiddleware records one event per state-changing request after it completes.
func WriteMiddleware(r *Recorder) gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		method := strings.ToUpper(c.Request.Method)
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		r.Record(c.Request.Context(), "http_write", LevelFromStatus(status), map[string]any{
			"method":     method,
			"route":      route,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start).String(),
			"request_id": c.GetString("request_id"),
			"client_ip":  c.ClientIP(),
		})
	}
}
