package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	OwnerIDHeader   = "X-Owner-ID"
	CompanyIDHeader = "X-Company-ID"
	ActorHeader     = "X-Actor"

	tenantKey = "tenant"
)

// Tenant identifies the bookkeeping owner, the company and the operator of a request
type Tenant struct {
	OwnerID   uuid.UUID
	CompanyID uuid.UUID
	Actor     string
}

// RequireTenant rejects requests without valid owner and company headers.
// The actor header is optional; operations that record an actor check it themselves.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, err := uuid.Parse(c.GetHeader(OwnerIDHeader))
		if err != nil {
			abortBadTenant(c, "missing or invalid "+OwnerIDHeader+" header")
			return
		}
		companyID, err := uuid.Parse(c.GetHeader(CompanyIDHeader))
		if err != nil || companyID == uuid.Nil {
			abortBadTenant(c, "missing or invalid "+CompanyIDHeader+" header")
			return
		}

		c.Set(tenantKey, Tenant{
			OwnerID:   ownerID,
			CompanyID: companyID,
			Actor:     c.GetHeader(ActorHeader),
		})
		c.Next()
	}
}

// GetTenant returns the tenant stored by RequireTenant
func GetTenant(c *gin.Context) (Tenant, bool) {
	v, exists := c.Get(tenantKey)
	if !exists {
		return Tenant{}, false
	}
	tenant, ok := v.(Tenant)
	return tenant, ok
}

func abortBadTenant(c *gin.Context, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    "BAD_REQUEST",
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, response)
}
