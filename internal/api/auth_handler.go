package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/middleware"
	"o3-ttgifts-backend/internal/models"
)

// AuthHandler verifies tokens for clients that want to check one before use.
type AuthHandler struct {
	verifier auth.Verifier
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(verifier auth.Verifier, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{verifier: verifier, logger: logger}
}

// VerifyToken handles POST /api/auth/verify-token
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	var req models.VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Token is required")
		return
	}

	identity, err := h.verifier.VerifyToken(c.Request.Context(), req.Token)
	if err != nil {
		h.logger.Debug("Token rejected", zap.Error(err))
		middleware.AbortWithMessage(c, http.StatusUnauthorized, "Invalid token")
		return
	}
	respond(c, http.StatusOK, TokenInfoResponse{UID: identity.UID, Email: identity.Email}, "Token is valid")
}
