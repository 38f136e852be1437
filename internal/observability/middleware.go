package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatusMiddleware logs each status API request and records it under service.
func StatusMiddleware(service string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()
		elapsed := time.Since(began)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		RecordHTTPRequest(service, c.Request.Method, route, code, elapsed)

		level := zerolog.DebugLevel
		switch {
		case code >= 500:
			level = zerolog.ErrorLevel
		case code >= 400:
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).
			Str("route", route).
			Int("code", code).
			Dur("elapsed", elapsed).
			Msg("observability.StatusMiddleware")
	}
}
