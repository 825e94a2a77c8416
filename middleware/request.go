package middleware

import (
	"log/slog"
	"time"

	"floorops/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	slowRequest     = 200 * time.Millisecond
)

// RequestID tags the request context with the incoming X-Request-ID or a new one and
// echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one line per request, at Warn when it was slow.
func AccessLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", latency),
		}
		if latency > slowRequest {
			log.Warn(c.Request.Context(), "http_request", "slow request", attrs...)
			return
		}
		log.Info(c.Request.Context(), "http_request", "request served", attrs...)
	}
}
