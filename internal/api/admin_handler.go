package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/models"
)

// AdminHandler backs the back-office panel. Every route sits behind RequireAdmin.
type AdminHandler struct {
	admin     core.AdminService
	instances core.InstanceService
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(as core.AdminService, is core.InstanceService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: as, instances: is, logger: logger}
}

// Dashboard handles GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	d, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, DashboardResponse{
		TotalUsers:          d.TotalUsers,
		ActiveSubscriptions: d.ActiveSubscriptions,
		TotalAccounts:       d.TotalAccounts,
		PendingAccounts:     d.PendingAccounts,
		TotalRevenue:        models.ToMajorUnits(d.TotalRevenue),
		RevenueLast30Days:   models.ToMajorUnits(d.RevenueLast30Days),
		RecentUsers:         d.RecentUsers,
	}, "")
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, err := h.admin.ListUsers(c.Request.Context(), core.UserFilter{Page: pageFrom(c), Search: c.Query("search")})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	out := AdminUserListResponse{Users: make([]AdminUserResponse, 0, len(page.Users)), Pagination: page.Pagination}
	for _, u := range page.Users {
		out.Users = append(out.Users, AdminUserResponse{
			User:         u.User,
			Subscription: newSubscriptionSummary(u.Subscription),
			AccountCount: u.AccountCount,
		})
	}
	respond(c, http.StatusOK, out, "")
}

// GetUser handles GET /api/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	detail, err := h.admin.UserDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, AdminUserDetailResponse{
		User:         detail.User,
		Subscription: detail.Subscription,
		Accounts:     detail.Accounts,
		Payments:     newPaymentResponses(detail.Payments),
	}, "")
}

// UpdateUser handles PATCH /api/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req models.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}
	user, err := h.admin.UpdateUser(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, user, "User updated successfully")
}

// ListAccounts handles GET /api/admin/accounts
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	filter := core.AccountFilter{Page: pageFrom(c), Status: c.Query("status"), Search: c.Query("search")}
	page, err := h.admin.ListAccounts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	out := AdminAccountListResponse{Accounts: make([]AdminAccountResponse, 0, len(page.Accounts)), Pagination: page.Pagination}
	for _, a := range page.Accounts {
		row := AdminAccountResponse{TikTokAccount: a.Account, Subscription: newSubscriptionSummary(a.Subscription)}
		if a.Owner != nil {
			row.Owner = &OwnerSummary{ID: a.Owner.ID, Email: a.Owner.Email, DisplayName: a.Owner.DisplayName}
		}
		out.Accounts = append(out.Accounts, row)
	}
	respond(c, http.StatusOK, out, "")
}

// UpdateAccount handles PATCH /api/admin/accounts/:id
func (h *AdminHandler) UpdateAccount(c *gin.Context) {
	var req models.AdminUpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}
	account, err := h.admin.UpdateAccount(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, account, "Account updated successfully")
}

// DisconnectAccount handles POST /api/admin/accounts/:id/disconnect
func (h *AdminHandler) DisconnectAccount(c *gin.Context) {
	if err := h.instances.Disconnect(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "Account disconnected and deleted successfully")
}

// DeleteAccount handles DELETE /api/admin/accounts/:id
func (h *AdminHandler) DeleteAccount(c *gin.Context) {
	if err := h.admin.DeleteAccount(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "Account deleted successfully")
}

// Analytics handles GET /api/admin/analytics
func (h *AdminHandler) Analytics(c *gin.Context) {
	a, err := h.admin.Analytics(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	daily := make([]DailyRevenueResponse, 0, len(a.DailyRevenue))
	for _, d := range a.DailyRevenue {
		daily = append(daily, DailyRevenueResponse{Date: d.Date, Amount: models.ToMajorUnits(d.Amount), Count: d.Count})
	}
	respond(c, http.StatusOK, AnalyticsResponse{
		NewUsersLast30Days:         a.NewUsersLast30Days,
		NewSubscriptionsLast30Days: a.NewSubscriptionsLast30Days,
		RevenueLast30Days:          models.ToMajorUnits(a.RevenueLast30Days),
		SubscriptionBreakdown:      a.SubscriptionBreakdown,
		AccountStatusBreakdown:     a.AccountStatusBreakdown,
		DailyRevenue:               daily,
	}, "")
}

// RecentActivity handles GET /api/admin/recent-activity
func (h *AdminHandler) RecentActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	activity, err := h.admin.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, RecentActivityResponse{
		Users:         activity.Users,
		Subscriptions: activity.Subscriptions,
		Payments:      newPaymentResponses(activity.Payments),
		Accounts:      activity.Accounts,
		AuditLogs:     activity.AuditLogs,
	}, "")
}

// GetInstance handles GET /api/admin/instances/:accountId
func (h *AdminHandler) GetInstance(c *gin.Context) {
	creds, err := h.instances.Lookup(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newInstanceResponse(creds), "")
}

// GenerateInstanceKey handles POST /api/admin/instances/generate-key
func (h *AdminHandler) GenerateInstanceKey(c *gin.Context) {
	var req models.InstanceKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Account ID is required")
		return
	}
	creds, err := h.instances.GenerateKey(c.Request.Context(), actorFrom(c), req.AccountID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newInstanceResponse(creds), "API key generated successfully")
}

// RegenerateInstanceKey handles POST /api/admin/instances/regenerate-key
func (h *AdminHandler) RegenerateInstanceKey(c *gin.Context) {
	var req models.InstanceKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Account ID is required")
		return
	}
	creds, err := h.instances.RegenerateKey(c.Request.Context(), actorFrom(c), req.AccountID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newInstanceResponse(creds), "API key regenerated successfully")
}

// UpdateInstanceURL handles PATCH /api/admin/instances/:accountId/url
func (h *AdminHandler) UpdateInstanceURL(c *gin.Context) {
	var req models.UpdateInstanceURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Instance URL is required")
		return
	}
	instance, err := h.instances.UpdateURL(c.Request.Context(), actorFrom(c), c.Param("accountId"), req.InstanceURL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, instance, "Instance URL updated successfully")
}
