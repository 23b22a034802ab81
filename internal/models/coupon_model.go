package models

import "time"

// DiscountType is the effect a coupon has at checkout.
type DiscountType string

// DiscountWaiveDeploymentFee removes the one-time deployment fee.
const DiscountWaiveDeploymentFee DiscountType = "waive_deployment_fee"

// CouponUsage records a single redemption.
type CouponUsage struct {
	UserID         string    `json:"userId" firestore:"userId" bson:"userId"`
	UsedAt         time.Time `json:"usedAt" firestore:"usedAt" bson:"usedAt"`
	SubscriptionID string    `json:"subscriptionId,omitempty" firestore:"subscriptionId,omitempty" bson:"subscriptionId,omitempty"`
}

// Coupon is a promotional code. The upper-cased code is the document ID.
// UsageCount never exceeds UsageLimit and a user appears in UsageHistory at most once.
type Coupon struct {
	ID           string        `json:"id" firestore:"id" bson:"_id"`
	Code         string        `json:"code" firestore:"code" bson:"code"`
	Description  string        `json:"description,omitempty" firestore:"description,omitempty" bson:"description,omitempty"`
	DiscountType DiscountType  `json:"discountType" firestore:"discountType" bson:"discountType"`
	UsageLimit   int           `json:"usageLimit" firestore:"usageLimit" bson:"usageLimit"`
	UsageCount   int           `json:"usageCount" firestore:"usageCount" bson:"usageCount"`
	IsActive     bool          `json:"isActive" firestore:"isActive" bson:"isActive"`
	ExpiresAt    *time.Time    `json:"expiresAt,omitempty" firestore:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
	UsageHistory []CouponUsage `json:"usageHistory" firestore:"usageHistory" bson:"usageHistory"`
	CreatedBy    string        `json:"createdBy,omitempty" firestore:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt    time.Time     `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// IsExpired reports whether the coupon has an expiry at or before now.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// RemainingUses is the number of redemptions left.
func (c *Coupon) RemainingUses() int {
	if c.UsageCount >= c.UsageLimit {
		return 0
	}
	return c.UsageLimit - c.UsageCount
}

// UsedBy reports whether userID has already redeemed the coupon.
func (c *Coupon) UsedBy(userID string) bool {
	for _, u := range c.UsageHistory {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

// IsRedeemable reports whether the coupon is active, unexpired and below its limit.
func (c *Coupon) IsRedeemable(now time.Time) bool {
	return c.IsActive && !c.IsExpired(now) && c.UsageCount < c.UsageLimit
}
