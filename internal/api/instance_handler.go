package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/middleware"
	"o3-ttgifts-backend/internal/models"
)

// maxInstanceBody bounds documents pushed by tracker instances.
const maxInstanceBody = 1 << 20

// InstanceHandler serves the documents of an authenticated tracker instance.
// InstanceAuth has already matched the path account to the API key.
type InstanceHandler struct {
	instances core.InstanceService
	logger    *zap.Logger
}

// NewInstanceHandler creates a new InstanceHandler.
func NewInstanceHandler(is core.InstanceService, logger *zap.Logger) *InstanceHandler {
	return &InstanceHandler{instances: is, logger: logger}
}

func (h *InstanceHandler) accountID(c *gin.Context) string {
	if instance, ok := middleware.InstanceFrom(c); ok {
		return instance.AccountID
	}
	return c.Param("accountId")
}

// rawBody reads the request body and fails with 400 when it is empty or too large.
func (h *InstanceHandler) rawBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 || len(body) > maxInstanceBody {
		badRequest(c, "Invalid request body")
		return nil, false
	}
	return body, true
}

// GetGiftGroups handles GET /api/instances/:accountId/gift-groups
func (h *InstanceHandler) GetGiftGroups(c *gin.Context) {
	groups, err := h.instances.GiftGroups(c.Request.Context(), h.accountID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, groups, "")
}

// SaveGiftGroups handles POST /api/instances/:accountId/gift-groups
func (h *InstanceHandler) SaveGiftGroups(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxInstanceBody)
	var req models.SaveGiftGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Groups) == 0 {
		badRequest(c, "Invalid groups data format")
		return
	}
	groups, err := h.instances.SaveGiftGroups(c.Request.Context(), h.accountID(c), req.Groups)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, groups, "Gift groups saved successfully")
}

// GetConfig handles GET /api/instances/:accountId/config
func (h *InstanceHandler) GetConfig(c *gin.Context) {
	cfg, err := h.instances.Config(c.Request.Context(), h.accountID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, cfg, "")
}

// SaveConfig handles POST /api/instances/:accountId/config
func (h *InstanceHandler) SaveConfig(c *gin.Context) {
	body, ok := h.rawBody(c)
	if !ok {
		return
	}
	cfg, err := h.instances.MergeConfig(c.Request.Context(), h.accountID(c), body)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, cfg, "Configuration saved successfully")
}

// GetAnalytics handles GET /api/instances/:accountId/analytics
func (h *InstanceHandler) GetAnalytics(c *gin.Context) {
	snapshot, err := h.instances.Analytics(c.Request.Context(), h.accountID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, snapshot, "")
}

// SaveAnalytics handles POST /api/instances/:accountId/analytics
func (h *InstanceHandler) SaveAnalytics(c *gin.Context) {
	body, ok := h.rawBody(c)
	if !ok {
		return
	}
	if err := h.instances.SaveAnalytics(c.Request.Context(), h.accountID(c), body); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "Analytics received successfully")
}
