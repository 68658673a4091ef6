package utils

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GetRealClientIP extracts the client IP, preferring X-Real-IP, then the
// first X-Forwarded-For hop, then gin's own resolution
func GetRealClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return c.ClientIP()
}

// RequestLogger logs one line per request with the real client IP
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Printf("%s %s %d %s ip=%s",
			c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Round(time.Microsecond), GetRealClientIP(c))
	}
}
