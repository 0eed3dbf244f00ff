package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"inphrone-backend/internal/common/logger"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		// health checks would drown the log
		switch c.FullPath() {
		case "/live", "/ready", "/metrics":
			return
		}

		logger.Info().
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int64("user_id", getUserID(c)).
			Int("body_size", c.Writer.Size()).
			Msg("Request processed")
	}
}
