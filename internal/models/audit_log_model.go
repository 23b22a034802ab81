package models

import "time"

// AuditLog records an administrative action.
type AuditLog struct {
	ID         string            `json:"id" firestore:"id" bson:"_id"`
	Timestamp  time.Time         `json:"timestamp" firestore:"timestamp" bson:"timestamp"`
	UserID     string            `json:"userId" firestore:"userId" bson:"userId"` // Who performed the action
	Action     string            `json:"action" firestore:"action" bson:"action"` // e.g. "COUPON_CREATE", "INSTANCE_KEY_REGENERATE"
	TargetType string            `json:"targetType,omitempty" firestore:"targetType,omitempty" bson:"targetType,omitempty"`
	TargetID   string            `json:"targetId,omitempty" firestore:"targetId,omitempty" bson:"targetId,omitempty"`
	IPAddress  string            `json:"ipAddress,omitempty" firestore:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty" firestore:"userAgent,omitempty" bson:"userAgent,omitempty"`
	Details    map[string]string `json:"details,omitempty" firestore:"details,omitempty" bson:"details,omitempty"`
}

// Audit actions.
const (
	ActionUserUpdate            = "USER_UPDATE"
	ActionAccountUpdate         = "ACCOUNT_UPDATE"
	ActionAccountDelete         = "ACCOUNT_DELETE"
	ActionAccountDisconnect     = "ACCOUNT_DISCONNECT"
	ActionCouponCreate          = "COUPON_CREATE"
	ActionCouponUpdate          = "COUPON_UPDATE"
	ActionCouponDelete          = "COUPON_DELETE"
	ActionInstanceKeyGenerate   = "INSTANCE_KEY_GENERATE"
	ActionInstanceKeyRegenerate = "INSTANCE_KEY_REGENERATE"
	ActionInstanceURLUpdate     = "INSTANCE_URL_UPDATE"
)

// Audit target types.
const (
	TargetUser     = "USER"
	TargetAccount  = "ACCOUNT"
	TargetCoupon   = "COUPON"
	TargetInstance = "INSTANCE"
)
