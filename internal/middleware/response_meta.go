package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const requestStartKey = "request_start"

// WithResponseMeta records when the request entered the handler chain.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// ResponseMeta builds the envelope meta for the current request and merges extra into it.
func ResponseMeta(c *gin.Context, extra map[string]interface{}) map[string]interface{} {
	meta := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		meta[k] = v
	}
	if c == nil {
		return meta
	}
	if value, exists := c.Get(requestStartKey); exists {
		if start, ok := value.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}
