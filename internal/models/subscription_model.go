package models

import "time"

// SubscriptionStatus mirrors the billing engine's subscription lifecycle.
type SubscriptionStatus string

const (
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusActive            SubscriptionStatus = "active"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusUnpaid            SubscriptionStatus = "unpaid"
)

// GoverningStatuses select the subscription that determines a user's entitlements.
var GoverningStatuses = []SubscriptionStatus{StatusActive, StatusTrialing, StatusPastDue}

// LiveStatuses are the statuses that block a new checkout and allow plan changes.
var LiveStatuses = []SubscriptionStatus{StatusActive, StatusTrialing}

// ParseSubscriptionStatus maps a billing engine status string onto a known status.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, bool) {
	switch st := SubscriptionStatus(s); st {
	case StatusIncomplete, StatusIncompleteExpired, StatusTrialing, StatusActive,
		StatusPastDue, StatusCanceled, StatusUnpaid:
		return st, true
	}
	return "", false
}

// Subscription is a user's plan subscription. Rows are never deleted; at most
// one per user is governing at a time.
type Subscription struct {
	ID                   string             `json:"id" firestore:"id" bson:"_id"`
	UserID               string             `json:"userId" firestore:"userId" bson:"userId"`
	StripeCustomerID     string             `json:"stripeCustomerId" firestore:"stripeCustomerId" bson:"stripeCustomerId"`
	StripeSubscriptionID string             `json:"stripeSubscriptionId,omitempty" firestore:"stripeSubscriptionId,omitempty" bson:"stripeSubscriptionId,omitempty"`
	Plan                 PlanType           `json:"plan" firestore:"plan" bson:"plan"`
	Status               SubscriptionStatus `json:"status" firestore:"status" bson:"status"`
	AccountCount         int                `json:"accountCount" firestore:"accountCount" bson:"accountCount"`
	CurrentPeriodStart   *time.Time         `json:"currentPeriodStart,omitempty" firestore:"currentPeriodStart,omitempty" bson:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time         `json:"currentPeriodEnd,omitempty" firestore:"currentPeriodEnd,omitempty" bson:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool               `json:"cancelAtPeriodEnd" firestore:"cancelAtPeriodEnd" bson:"cancelAtPeriodEnd"`
	CanceledAt           *time.Time         `json:"canceledAt,omitempty" firestore:"canceledAt,omitempty" bson:"canceledAt,omitempty"`
	DeploymentFeePaid    bool               `json:"deploymentFeePaid" firestore:"deploymentFeePaid" bson:"deploymentFeePaid"`
	CouponCode           string             `json:"couponCode,omitempty" firestore:"couponCode,omitempty" bson:"couponCode,omitempty"`
	CreatedAt            time.Time          `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// IsGoverning reports whether the subscription currently grants entitlements.
func (s *Subscription) IsGoverning() bool {
	for _, st := range GoverningStatuses {
		if s.Status == st {
			return true
		}
	}
	return false
}
