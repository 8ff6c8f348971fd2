package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/logger"
	"github.com/Aleut-Geoff-Vaughan/myOpsHub-sub005/internal/requestdata"
)

// TenantMiddleware reads the tenant and acting-user ids the authenticating
// gateway stamps on each request. This core trusts them verbatim; it never
// authenticates or authorizes on its own.
type TenantMiddleware struct {
	log *logger.Logger
}

func NewTenantMiddleware(log *logger.Logger) *TenantMiddleware {
	middlewareLog := log.With("middleware", "TenantMiddleware")
	return &TenantMiddleware{log: middlewareLog}
}

func (tm *TenantMiddleware) RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.GetHeader("X-Tenant-ID"))
		if err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid tenant id"})
			return
		}
		userID, err := uuid.Parse(c.GetHeader("X-User-ID"))
		if err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user id"})
			return
		}

		ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{
			TenantID: tenantID,
			UserID:   userID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
