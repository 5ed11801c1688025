package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(captured *Tenant) *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID())
		router.Use(RequireTenant())
		router.GET("/imports", func(c *gin.Context) {
			*captured, _ = GetTenant(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("StoresTenant", func(t *testing.T) {
		var captured Tenant
		ownerID, companyID := uuid.New(), uuid.New()

		req, _ := http.NewRequest(http.MethodGet, "/imports", nil)
		req.Header.Set(OwnerIDHeader, ownerID.String())
		req.Header.Set(CompanyIDHeader, companyID.String())
		req.Header.Set(ActorHeader, "alice")
		rr := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, Tenant{OwnerID: ownerID, CompanyID: companyID, Actor: "alice"}, captured)
	})

	t.Run("RejectsMissingCompany", func(t *testing.T) {
		var captured Tenant

		req, _ := http.NewRequest(http.MethodGet, "/imports", nil)
		req.Header.Set(OwnerIDHeader, uuid.New().String())
		req.Header.Set(CorrelationIDHeader, "corr-1")
		rr := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, Tenant{}, captured)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "corr-1", body["correlation_id"])
		errorField, ok := body["error"].(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, errorField["message"], CompanyIDHeader)
	})

	t.Run("RejectsInvalidOwner", func(t *testing.T) {
		var captured Tenant

		req, _ := http.NewRequest(http.MethodGet, "/imports", nil)
		req.Header.Set(OwnerIDHeader, "not-a-uuid")
		req.Header.Set(CompanyIDHeader, uuid.New().String())
		rr := httptest.NewRecorder()
		newRouter(&captured).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetTenant_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetTenant(c)
	assert.False(t, ok)
}
