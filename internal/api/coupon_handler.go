package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/models"
)

// CouponHandler validates coupons for users and administers them for admins.
type CouponHandler struct {
	userService core.UserService
	coupons     core.CouponService
	logger      *zap.Logger
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(us core.UserService, cs core.CouponService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{userService: us, coupons: cs, logger: logger}
}

// ValidateCoupon handles POST /api/coupons/validate
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	user, ok := currentUser(c, h.userService, h.logger)
	if !ok {
		return
	}

	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Coupon code is required")
		return
	}

	coupon, err := h.coupons.Validate(c.Request.Context(), req.Code, user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, CouponValidationResponse{
		Valid:        true,
		Code:         coupon.Code,
		Description:  coupon.Description,
		DiscountType: coupon.DiscountType,
		Discount: CouponDiscount{
			WaivesDeploymentFee: true,
			DeploymentFeeAmount: models.ToMajorUnits(models.DeploymentFee),
		},
	}, "Coupon is valid")
}

// ListCoupons handles GET /api/coupons
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	page, err := h.coupons.List(c.Request.Context(), core.CouponFilter{Page: pageFrom(c), Status: c.Query("status")})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	now := time.Now().UTC()
	out := CouponListResponse{Coupons: make([]CouponResponse, 0, len(page.Coupons)), Pagination: page.Pagination}
	for _, coupon := range page.Coupons {
		out.Coupons = append(out.Coupons, newCouponResponse(coupon, now, false))
	}
	respond(c, http.StatusOK, out, "")
}

// CreateCoupon handles POST /api/coupons
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req models.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Code and usage limit are required")
		return
	}

	coupon, err := h.coupons.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, newCouponResponse(coupon, time.Now().UTC(), false), "Coupon created successfully")
}

// CouponStats handles GET /api/coupons/stats/summary
func (h *CouponHandler) CouponStats(c *gin.Context) {
	stats, err := h.coupons.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, CouponStatsResponse{
		TotalCoupons:     stats.TotalCoupons,
		ActiveCoupons:    stats.ActiveCoupons,
		TotalRedemptions: stats.TotalRedemptions,
		TotalFeesWaived:  models.ToMajorUnits(stats.TotalFeesWaived),
	}, "")
}

// GetCoupon handles GET /api/coupons/:id
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	coupon, err := h.coupons.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newCouponResponse(coupon, time.Now().UTC(), true), "")
}

// UpdateCoupon handles PATCH /api/coupons/:id
func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	var req models.UpdateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	coupon, err := h.coupons.Update(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, newCouponResponse(coupon, time.Now().UTC(), false), "Coupon updated successfully")
}

// DeleteCoupon handles DELETE /api/coupons/:id
func (h *CouponHandler) DeleteCoupon(c *gin.Context) {
	if err := h.coupons.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, nil, "Coupon deleted successfully")
}
