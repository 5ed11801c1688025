package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bank-reconciliation-engine/internal/logger"
)

func TestCorrelationIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(ginID, requestID *string) *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID())
		router.POST("/statements/parse", func(c *gin.Context) {
			*ginID = c.GetString(CorrelationIDKey)
			*requestID = logger.CorrelationIDFromContext(c.Request.Context())
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("GeneratesCorrelationIDIfNotProvided", func(t *testing.T) {
		var ginID, requestID string

		req, _ := http.NewRequest(http.MethodPost, "/statements/parse", nil)
		rr := httptest.NewRecorder()
		newRouter(&ginID, &requestID).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		respHeaderID := rr.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(respHeaderID)
		assert.NoError(t, err, "generated correlation id should be a UUID")
		assert.Equal(t, respHeaderID, ginID)
		assert.Equal(t, respHeaderID, requestID, "request context carries the id")
	})

	t.Run("UsesCorrelationIDIfProvided", func(t *testing.T) {
		var ginID, requestID string
		providedID := "upload-7f3a"

		req, _ := http.NewRequest(http.MethodPost, "/statements/parse", nil)
		req.Header.Set(CorrelationIDHeader, providedID)
		rr := httptest.NewRecorder()
		newRouter(&ginID, &requestID).ServeHTTP(rr, req)

		assert.Equal(t, providedID, rr.Header().Get(CorrelationIDHeader))
		assert.Equal(t, providedID, ginID)
		assert.Equal(t, providedID, requestID)
	})
}

func TestGetCorrelationID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCorrelationID(c))

	c.Set(CorrelationIDKey, 12345)
	assert.Empty(t, GetCorrelationID(c), "non-string values are ignored")

	c.Set(CorrelationIDKey, "abc")
	assert.Equal(t, "abc", GetCorrelationID(c))
}
