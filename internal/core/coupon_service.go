package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/metrics"
	"o3-ttgifts-backend/internal/models"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

type couponService struct {
	couponRepo   db.CouponRepository
	auditService AuditService
	logger       *zap.Logger
	now          clock
}

// NewCouponService creates a new CouponService.
func NewCouponService(couponRepo db.CouponRepository, as AuditService, logger *zap.Logger) CouponService {
	return &couponService{
		couponRepo:   couponRepo,
		auditService: as,
		logger:       logger,
		now:          systemClock,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// checkRedeemable applies the redemption rules in order; the first failing
// rule decides the rejection.
func checkRedeemable(c *models.Coupon, userID string, now clock) error {
	switch {
	case !c.IsActive:
		return ErrCouponInvalid
	case c.IsExpired(now()):
		return ErrCouponExpired
	case c.UsageCount >= c.UsageLimit:
		return ErrCouponLimitReached
	case c.UsedBy(userID):
		return ErrCouponAlreadyUsed
	}
	return nil
}

func (s *couponService) Validate(ctx context.Context, code, userID string) (*models.Coupon, error) {
	if normalizeCode(code) == "" {
		return nil, validationError("Coupon code is required")
	}
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrCouponInvalid
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	if err := checkRedeemable(coupon, userID, s.now); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Redeem re-checks every rule inside the atomic update, so concurrent
// redemptions can never push UsageCount past UsageLimit.
func (s *couponService) Redeem(ctx context.Context, code, userID, subscriptionID string) (*models.Coupon, error) {
	coupon, err := s.couponRepo.Update(ctx, code, func(c *models.Coupon) error {
		if err := checkRedeemable(c, userID, s.now); err != nil {
			return err
		}
		c.UsageCount++
		c.UsageHistory = append(c.UsageHistory, models.CouponUsage{
			UserID:         userID,
			UsedAt:         s.now(),
			SubscriptionID: subscriptionID,
		})
		return nil
	})
	if err != nil {
		var ce *Error
		switch {
		case db.IsNotFound(err):
			metrics.CouponRedemptionsTotal.WithLabelValues("invalid").Inc()
			return nil, ErrCouponInvalid
		case errors.As(err, &ce):
			metrics.CouponRedemptionsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		metrics.CouponRedemptionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to redeem coupon %s: %w", normalizeCode(code), err)
	}
	metrics.CouponRedemptionsTotal.WithLabelValues("redeemed").Inc()
	s.logger.Info("Coupon redeemed",
		zap.String("code", coupon.Code),
		zap.String("user_id", userID),
		zap.Int("usage_count", coupon.UsageCount),
		zap.Int("usage_limit", coupon.UsageLimit))
	return coupon, nil
}

func (s *couponService) Create(ctx context.Context, actor Actor, req models.CreateCouponRequest) (*models.Coupon, error) {
	code := normalizeCode(req.Code)
	if code == "" {
		return nil, validationError("Coupon code is required")
	}
	if !couponCodePattern.MatchString(code) {
		return nil, validationError("Coupon code must be 3-32 characters of A-Z, 0-9, '-' or '_'")
	}
	if req.UsageLimit < 1 {
		return nil, validationError("Usage limit must be at least 1")
	}

	now := s.now()
	coupon := &models.Coupon{
		Code:         code,
		Description:  strings.TrimSpace(req.Description),
		DiscountType: models.DiscountWaiveDeploymentFee,
		UsageLimit:   req.UsageLimit,
		IsActive:     true,
		ExpiresAt:    req.ExpiresAt,
		UsageHistory: []models.CouponUsage{},
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, conflictError("A coupon with this code already exists")
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	s.logger.Info("Admin created coupon", zap.String("code", code), zap.Int("usage_limit", coupon.UsageLimit))
	s.auditService.Record(ctx, actor, models.ActionCouponCreate, models.TargetCoupon, coupon.ID,
		map[string]string{"usage_limit": fmt.Sprint(coupon.UsageLimit)})
	return coupon, nil
}

func (s *couponService) List(ctx context.Context, filter CouponFilter) (*CouponPage, error) {
	page := filter.Page.normalize(20)
	all, err := s.couponRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	now := s.now()
	matched := make([]*models.Coupon, 0, len(all))
	for _, c := range all {
		switch filter.Status {
		case "active":
			if !c.IsActive || c.IsExpired(now) {
				continue
			}
		case "inactive":
			if c.IsActive {
				continue
			}
		case "expired":
			if !c.IsExpired(now) {
				continue
			}
		}
		matched = append(matched, c)
	}

	return &CouponPage{
		Coupons:    paginate(matched, page),
		Pagination: newPagination(page, len(matched)),
	}, nil
}

func (s *couponService) Get(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("Coupon not found")
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return coupon, nil
}

func (s *couponService) Update(ctx context.Context, actor Actor, code string, req models.UpdateCouponRequest) (*models.Coupon, error) {
	if req.UsageLimit != nil && *req.UsageLimit < 1 {
		return nil, validationError("Usage limit must be at least 1")
	}
	coupon, err := s.couponRepo.Update(ctx, code, func(c *models.Coupon) error {
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		if req.UsageLimit != nil {
			if *req.UsageLimit < c.UsageCount {
				return validationError("Usage limit cannot be less than current usage count (%d)", c.UsageCount)
			}
			c.UsageLimit = *req.UsageLimit
		}
		if req.Description != nil {
			c.Description = strings.TrimSpace(*req.Description)
		}
		if req.ExpiresAt.Set {
			c.ExpiresAt = req.ExpiresAt.Value
		}
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("Coupon not found")
		}
		var ce *Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update coupon: %w", err)
	}

	details := map[string]string{}
	if req.IsActive != nil {
		details["is_active"] = fmt.Sprint(*req.IsActive)
	}
	if req.UsageLimit != nil {
		details["usage_limit"] = fmt.Sprint(*req.UsageLimit)
	}
	s.auditService.Record(ctx, actor, models.ActionCouponUpdate, models.TargetCoupon, coupon.ID, details)
	return coupon, nil
}

// Delete only removes coupons that were never redeemed.
func (s *couponService) Delete(ctx context.Context, actor Actor, code string) error {
	coupon, err := s.Get(ctx, code)
	if err != nil {
		return err
	}
	if coupon.UsageCount > 0 {
		return validationError("Cannot delete coupon that has been used. Deactivate it instead.")
	}
	if err := s.couponRepo.Delete(ctx, coupon.Code); err != nil {
		if db.IsNotFound(err) {
			return notFoundError("Coupon not found")
		}
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	s.logger.Info("Admin deleted unused coupon", zap.String("code", coupon.Code))
	s.auditService.Record(ctx, actor, models.ActionCouponDelete, models.TargetCoupon, coupon.ID, nil)
	return nil
}

func (s *couponService) Stats(ctx context.Context) (*CouponStats, error) {
	all, err := s.couponRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	now := s.now()
	stats := &CouponStats{TotalCoupons: len(all)}
	for _, c := range all {
		if c.IsActive && !c.IsExpired(now) {
			stats.ActiveCoupons++
		}
		stats.TotalRedemptions += c.UsageCount
	}
	stats.TotalFeesWaived = int64(stats.TotalRedemptions) * models.DeploymentFee
	return stats, nil
}
