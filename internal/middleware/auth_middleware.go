package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/models"
)

// Authenticate verifies the bearer token and stores the verified identity.
// It never touches the user store; handlers resolve the local user themselves.
func Authenticate(verifier auth.Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithMessage(c, http.StatusUnauthorized, "No authentication token provided")
			return
		}

		identity, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			logger.Debug("Token verification failed", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			AbortWithMessage(c, http.StatusUnauthorized, "Invalid or expired authentication token")
			return
		}

		auth.SetIdentity(c, identity)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate. It admits only active admins.
func RequireAdmin(users core.UserService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.IdentityFrom(c)
		if !ok {
			AbortWithMessage(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		admin, err := users.RequireAdmin(c.Request.Context(), identity.UID)
		if err != nil {
			if MapErrorToStatus(err) == http.StatusForbidden {
				logger.Warn("Admin access denied", zap.String("user_id", identity.UID), zap.String("path", c.Request.URL.Path))
			}
			AbortWithError(c, logger, err)
			return
		}
		c.Set(adminKey, admin)
		c.Next()
	}
}

const adminKey = "auth.admin"

// AdminFrom returns the admin user stored by RequireAdmin.
func AdminFrom(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(adminKey)
	if !ok {
		return nil, false
	}
	admin, ok := v.(*models.User)
	return admin, ok && admin != nil
}

const instanceKey = "auth.instance"

// InstanceAuth authenticates tracker instances by the X-API-Key and
// X-Account-ID headers. When the route has an :accountId parameter it must
// match the authenticated account.
func InstanceAuth(instances core.InstanceService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		instance, err := instances.Authenticate(c.Request.Context(), c.GetHeader("X-API-Key"), c.GetHeader("X-Account-ID"))
		if err != nil {
			AbortWithError(c, logger, err)
			return
		}
		if accountID := c.Param("accountId"); accountID != "" && accountID != instance.AccountID {
			AbortWithMessage(c, http.StatusForbidden, "Account ID mismatch")
			return
		}
		c.Set(instanceKey, instance)
		c.Next()
	}
}

// InstanceFrom returns the instance stored by InstanceAuth.
func InstanceFrom(c *gin.Context) (*models.TrackerInstance, bool) {
	v, ok := c.Get(instanceKey)
	if !ok {
		return nil, false
	}
	instance, ok := v.(*models.TrackerInstance)
	return instance, ok
}
