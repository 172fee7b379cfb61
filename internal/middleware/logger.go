package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger 请求日志，handler 通过 c.Error 挂上的内部错误在这里统一输出
func Logger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if uid, ok := c.Get(ContextUserIDKey); ok {
			entry = entry.WithField("user_id", uid)
		}
		switch {
		case len(c.Errors) > 0:
			entry.WithError(c.Errors.Last()).Error("request failed")
		case c.Writer.Status() >= 500:
			entry.Error("request")
		default:
			entry.Debug("request")
		}
	}
}
