package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl sets the Cache-Control header. A non-positive maxAge marks the
// response private and uncacheable, which is what per-candidate results need.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	value := "private, no-store"
	if maxAgeSeconds > 0 {
		value = fmt.Sprintf("public, max-age=%d", maxAgeSeconds)
	}
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
