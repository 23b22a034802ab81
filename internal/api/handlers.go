package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/middleware"
	"o3-ttgifts-backend/internal/models"
)

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	middleware.AbortWithError(c, logger, err)
}

func badRequest(c *gin.Context, message string) {
	middleware.AbortWithMessage(c, http.StatusBadRequest, message)
}

// currentUser resolves the verified identity to the local user, provisioning
// it on first sight. It writes the error response itself and reports false.
func currentUser(c *gin.Context, users core.UserService, logger *zap.Logger) (*models.User, bool) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		middleware.AbortWithMessage(c, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	res, err := users.ResolveOrProvision(c.Request.Context(), identity)
	if err != nil {
		respondError(c, logger, err)
		return nil, false
	}
	if res.Created {
		logger.Info("Provisioned user on first request", zap.String("user_id", res.User.ID))
	}
	return res.User, true
}

// actorFrom describes the caller for audit entries.
func actorFrom(c *gin.Context) core.Actor {
	actor := core.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	if admin, ok := middleware.AdminFrom(c); ok {
		actor.UserID = admin.ID
	} else if identity, ok := auth.IdentityFrom(c); ok {
		actor.UserID = identity.UID
	}
	return actor
}

// pageFrom reads the page and limit query parameters. Invalid values are
// left at zero so the service applies its defaults.
func pageFrom(c *gin.Context) core.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return core.Page{Page: page, Limit: limit}
}
