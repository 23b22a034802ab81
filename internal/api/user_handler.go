package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/models"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	userService core.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: us, logger: logger}
}

// GetCurrentUserProfile handles GET /api/auth/me
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	respond(c, http.StatusOK, newProfileResponse(user), "")
}

// UpdateProfile handles PUT /api/auth/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	updated, err := h.userService.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newProfileResponse(updated), "Profile updated successfully")
}

// DeactivateAccount handles DELETE /api/auth/account
func (h *UserHandler) DeactivateAccount(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	if err := h.userService.Deactivate(c.Request.Context(), user.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("User deactivated own account", zap.String("user_id", user.ID))
	respond(c, http.StatusOK, nil, "Account deactivated successfully")
}
