package middleware

import (
	"time"

	"github.com/bestruirui/sprout/internal/utils/log"
	"github.com/gin-gonic/gin"
)

// Logger is only wired in debug mode.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start))
	}
}
