package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/models"
)

// SubscriptionHandler serves the plan catalog and the caller's subscription.
type SubscriptionHandler struct {
	userService   core.UserService
	subscriptions core.SubscriptionService
	logger        *zap.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(us core.UserService, ss core.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{userService: us, subscriptions: ss, logger: logger}
}

// Plans handles GET /api/subscriptions/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	plans := models.Plans()
	out := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, newPlanResponse(p))
	}
	respond(c, http.StatusOK, out, "")
}

// Current handles GET /api/subscriptions/current
func (h *SubscriptionHandler) Current(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	cur, err := h.subscriptions.Current(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if cur == nil {
		respond(c, http.StatusOK, nil, "No active subscription found")
		return
	}
	respond(c, http.StatusOK, newCurrentSubscriptionResponse(cur), "")
}

// Usage handles GET /api/subscriptions/usage
func (h *SubscriptionHandler) Usage(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	usage, err := h.subscriptions.Usage(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, UsageResponse{
		Plan:       usage.Plan,
		Accounts:   newQuotaUsage(usage.AccountsUsed, usage.AccountsLimit),
		GiftGroups: newQuotaUsage(int64(usage.GiftGroupsUsed), usage.GiftGroupsLimit),
	}, "")
}

// Cancel handles POST /api/subscriptions/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Cancel(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newSubscriptionChangeResponse(sub), "Subscription will be canceled at the end of the current period")
}

// Reactivate handles POST /api/subscriptions/reactivate
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Reactivate(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newSubscriptionChangeResponse(sub), "Subscription has been reactivated")
}

// ChangePlan handles POST /api/subscriptions/change-plan
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}

	var req models.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid plan selected")
		return
	}

	sub, err := h.subscriptions.ChangePlan(c.Request.Context(), user.ID, req.NewPlan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	message := "Plan changed"
	if plan, ok := models.LookupPlan(sub.Plan); ok {
		message = fmt.Sprintf("Plan changed to %s", plan.Name)
	}
	respond(c, http.StatusOK, newSubscriptionChangeResponse(sub), message)
}
