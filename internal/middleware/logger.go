package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/opsdeck/pkg/logger"
	"github.com/charlesng35/opsdeck/pkg/metrics"
)

// Logger writes a concise structured access log for each request and feeds
// the latency histogram.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		metrics.APILatency.WithLabelValues(method, c.FullPath(), strconv.Itoa(status)).
			Observe(duration.Seconds())

		logger.WithModule("http").Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
