package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/models"
)

// AccountHandler manages the caller's tracked TikTok accounts.
type AccountHandler struct {
	userService core.UserService
	accounts    core.AccountService
	logger      *zap.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(us core.UserService, as core.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{userService: us, accounts: as, logger: logger}
}

// ListAccounts handles GET /api/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	accounts, err := h.accounts.List(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, accounts, "")
}

// CreateAccount handles POST /api/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}

	var req models.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Account name is required")
		return
	}

	account, err := h.accounts.Create(c.Request.Context(), user.ID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, account, "TikTok account added successfully")
}

// GetAccount handles GET /api/accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	account, err := h.accounts.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, account, "")
}

// UpdateAccount handles PUT /api/accounts/:id
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}

	var req models.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	account, err := h.accounts.Update(c.Request.Context(), user.ID, c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, account, "Account updated successfully")
}

// DeleteAccount handles DELETE /api/accounts/:id
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "Account deleted successfully")
}

// SyncAccount handles POST /api/accounts/:id/sync
func (h *AccountHandler) SyncAccount(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	account, err := h.accounts.Sync(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, account, "Account sync initiated")
}
