package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// CreateCheckoutSessionRequest is the body of POST /api/payments/create-checkout-session.
type CreateCheckoutSessionRequest struct {
	Plan         PlanType `json:"plan" binding:"required"`
	AccountCount int      `json:"accountCount,omitempty"`
	CouponCode   string   `json:"couponCode,omitempty"`
}

// UpdateProfileRequest updates the caller's display fields.
// Pointers distinguish an empty value from a field that was not provided.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

// VerifyTokenRequest is the body of POST /api/auth/verify-token.
type VerifyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ChangePlanRequest is the body of POST /api/subscriptions/change-plan.
type ChangePlanRequest struct {
	NewPlan PlanType `json:"newPlan" binding:"required"`
}

// CreateAccountRequest represents the request body for tracking a new TikTok account.
type CreateAccountRequest struct {
	AccountName   string `json:"accountName" binding:"required"`
	AccountHandle string `json:"accountHandle,omitempty"`
	AccountID     string `json:"accountId,omitempty"`
}

// UpdateAccountRequest represents a partial update of a tracked account.
type UpdateAccountRequest struct {
	AccountName   *string        `json:"accountName,omitempty"`
	AccountHandle *string        `json:"accountHandle,omitempty"`
	AccountID     *string        `json:"accountId,omitempty"`
	Status        *AccountStatus `json:"status,omitempty"`
}

// ValidateCouponRequest is the body of POST /api/coupons/validate.
type ValidateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CreateCouponRequest represents the request body for creating a coupon.
type CreateCouponRequest struct {
	Code        string     `json:"code" binding:"required"`
	Description string     `json:"description,omitempty"`
	UsageLimit  int        `json:"usageLimit" binding:"required"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// UpdateCouponRequest represents a partial coupon update. An explicit
// "expiresAt": null clears the expiry.
type UpdateCouponRequest struct {
	IsActive    *bool        `json:"isActive,omitempty"`
	UsageLimit  *int         `json:"usageLimit,omitempty"`
	Description *string      `json:"description,omitempty"`
	ExpiresAt   OptionalTime `json:"expiresAt"`
}

// OptionalTime tracks whether a JSON field was present, so null can be told
// apart from an omitted field.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// UnmarshalJSON is only called when the field is present.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// AdminUpdateUserRequest is the body of PATCH /api/admin/users/:id.
type AdminUpdateUserRequest struct {
	Role     *Role `json:"role,omitempty"`
	IsActive *bool `json:"isActive,omitempty"`
}

// AdminUpdateAccountRequest is the body of PATCH /api/admin/accounts/:id.
type AdminUpdateAccountRequest struct {
	Status    *AccountStatus `json:"status,omitempty"`
	AccessURL *string        `json:"accessUrl,omitempty"`
}

// InstanceKeyRequest names the account whose instance key is (re)generated.
type InstanceKeyRequest struct {
	AccountID string `json:"accountId" binding:"required"`
}

// UpdateInstanceURLRequest is the body of PATCH /api/admin/instances/:accountId/url.
type UpdateInstanceURLRequest struct {
	InstanceURL string `json:"instanceUrl" binding:"required"`
}

// SaveGiftGroupsRequest is the body of POST /api/instances/:accountId/gift-groups.
type SaveGiftGroupsRequest struct {
	Groups json.RawMessage `json:"groups"`
}
