package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestResponseMetaIncludesProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/meta", func(c *gin.Context) {
		meta = ResponseMeta(c, map[string]interface{}{"count": 2})
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/meta", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, meta["count"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestResponseMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	meta := ResponseMeta(c, map[string]interface{}{"batch": "CS2024"})

	assert.Equal(t, map[string]interface{}{"batch": "CS2024"}, meta)
}
