package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

type couponRepository struct {
	coupons collection[models.Coupon]
}

// NewCouponRepository creates a CouponRepository over store.
func NewCouponRepository(store database.Store) CouponRepository {
	return &couponRepository{coupons: collection[models.Coupon]{store: store, name: couponsCollection}}
}

func couponID(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create stores the coupon under its normalized code; a duplicate code fails
// with ErrAlreadyExists.
func (r *couponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = couponID(coupon.Code)
	coupon.ID = coupon.Code
	if err := r.coupons.create(ctx, coupon.ID, coupon); err != nil {
		return fmt.Errorf("failed to create coupon '%s': %w", coupon.Code, err)
	}
	return nil
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	id := couponID(code)
	if id == "" {
		return nil, fmt.Errorf("empty coupon code: %w", database.ErrNotFound)
	}
	coupon, err := r.coupons.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon '%s': %w", id, err)
	}
	return coupon, nil
}

func (r *couponRepository) Update(ctx context.Context, code string, mutate func(*models.Coupon) error) (*models.Coupon, error) {
	return r.coupons.update(ctx, couponID(code), func(c *models.Coupon) error {
		if err := mutate(c); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *couponRepository) Delete(ctx context.Context, code string) error {
	if err := r.coupons.delete(ctx, couponID(code)); err != nil {
		return fmt.Errorf("failed to delete coupon '%s': %w", code, err)
	}
	return nil
}

func (r *couponRepository) List(ctx context.Context) ([]*models.Coupon, error) {
	return r.coupons.find(ctx, newestFirst())
}
