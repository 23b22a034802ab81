package api

import (
	"time"

	"o3-ttgifts-backend/internal/billing"
	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/models"
)

// Response is the envelope of every successful reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// Amounts in the DTOs below are major currency units.

// ProfileResponse is the caller's profile.
type ProfileResponse struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	DisplayName   string      `json:"displayName,omitempty"`
	PhotoURL      string      `json:"photoURL,omitempty"`
	EmailVerified bool        `json:"emailVerified"`
	Role          models.Role `json:"role"`
	CreatedAt     time.Time   `json:"createdAt"`
	LastLogin     *time.Time  `json:"lastLogin,omitempty"`
}

func newProfileResponse(u *models.User) ProfileResponse {
	return ProfileResponse{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		EmailVerified: u.EmailVerified,
		Role:          u.Role,
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

// PlanResponse is a catalog entry.
type PlanResponse struct {
	ID           models.PlanType `json:"id"`
	Name         string          `json:"name"`
	MonthlyPrice float64         `json:"monthlyPrice"`
	Accounts     int             `json:"accounts"`
	GiftGroups   int             `json:"giftGroups"`
	Features     []string        `json:"features"`
}

func newPlanResponse(p models.Plan) PlanResponse {
	return PlanResponse{
		ID:           p.Type,
		Name:         p.Name,
		MonthlyPrice: models.ToMajorUnits(p.MonthlyPrice),
		Accounts:     p.Accounts,
		GiftGroups:   p.GiftGroups,
		Features:     p.Features,
	}
}

// CurrentSubscriptionResponse is the governing subscription with its plan and usage.
type CurrentSubscriptionResponse struct {
	ID                 string                    `json:"id"`
	Plan               models.PlanType           `json:"plan"`
	PlanDetails        PlanResponse              `json:"planDetails"`
	Status             models.SubscriptionStatus `json:"status"`
	CurrentPeriodStart *time.Time                `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time                `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool                      `json:"cancelAtPeriodEnd"`
	DeploymentFeePaid  bool                      `json:"deploymentFeePaid"`
	Usage              AccountUsage              `json:"usage"`
}

// AccountUsage is the active account count against the plan quota.
type AccountUsage struct {
	AccountsUsed  int64 `json:"accountsUsed"`
	AccountsLimit int   `json:"accountsLimit"`
}

func newCurrentSubscriptionResponse(cur *core.CurrentSubscription) CurrentSubscriptionResponse {
	s := cur.Subscription
	return CurrentSubscriptionResponse{
		ID:                 s.ID,
		Plan:               s.Plan,
		PlanDetails:        newPlanResponse(cur.Plan),
		Status:             s.Status,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		DeploymentFeePaid:  s.DeploymentFeePaid,
		Usage:              AccountUsage{AccountsUsed: cur.AccountsUsed, AccountsLimit: cur.AccountsLimit},
	}
}

// QuotaUsage is one quota with its consumption.
type QuotaUsage struct {
	Used       int64   `json:"used"`
	Limit      int     `json:"limit"`
	Percentage float64 `json:"percentage"`
}

func newQuotaUsage(used int64, limit int) QuotaUsage {
	q := QuotaUsage{Used: used, Limit: limit}
	if limit > 0 {
		q.Percentage = float64(used) / float64(limit) * 100
	}
	return q
}

// UsageResponse reports plan consumption.
type UsageResponse struct {
	Plan       models.PlanType `json:"plan"`
	Accounts   QuotaUsage      `json:"accounts"`
	GiftGroups QuotaUsage      `json:"giftGroups"`
}

// SubscriptionChangeResponse is returned by cancel, reactivate and change-plan.
type SubscriptionChangeResponse struct {
	ID                string                    `json:"id"`
	Plan              models.PlanType           `json:"plan"`
	Status            models.SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd bool                      `json:"cancelAtPeriodEnd"`
	CurrentPeriodEnd  *time.Time                `json:"currentPeriodEnd,omitempty"`
}

func newSubscriptionChangeResponse(s *models.Subscription) SubscriptionChangeResponse {
	return SubscriptionChangeResponse{
		ID:                s.ID,
		Plan:              s.Plan,
		Status:            s.Status,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CurrentPeriodEnd:  s.CurrentPeriodEnd,
	}
}

// SubscriptionSummary is the short form used in admin listings.
type SubscriptionSummary struct {
	ID     string                    `json:"id"`
	Plan   models.PlanType           `json:"plan"`
	Status models.SubscriptionStatus `json:"status"`
}

func newSubscriptionSummary(s *models.Subscription) *SubscriptionSummary {
	if s == nil {
		return nil
	}
	return &SubscriptionSummary{ID: s.ID, Plan: s.Plan, Status: s.Status}
}

// CheckoutResponse points the client at the hosted checkout.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// PaymentResponse is a ledger row.
type PaymentResponse struct {
	ID          string               `json:"id"`
	Type        models.PaymentType   `json:"type"`
	Amount      float64              `json:"amount"`
	Currency    string               `json:"currency"`
	Status      models.PaymentStatus `json:"status"`
	Description string               `json:"description,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

func newPaymentResponses(payments []*models.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, PaymentResponse{
			ID:          p.ID,
			Type:        p.Type,
			Amount:      models.ToMajorUnits(p.Amount),
			Currency:    p.Currency,
			Status:      p.Status,
			Description: p.Description,
			CreatedAt:   p.CreatedAt,
		})
	}
	return out
}

// InvoiceResponse is a provider invoice.
type InvoiceResponse struct {
	ID               string    `json:"id"`
	Number           string    `json:"number,omitempty"`
	Status           string    `json:"status"`
	AmountDue        float64   `json:"amountDue"`
	AmountPaid       float64   `json:"amountPaid"`
	Currency         string    `json:"currency"`
	HostedInvoiceURL string    `json:"hostedInvoiceUrl,omitempty"`
	InvoicePDF       string    `json:"invoicePdf,omitempty"`
	Created          time.Time `json:"created"`
}

func newInvoiceResponses(invoices []billing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, InvoiceResponse{
			ID:               inv.ID,
			Number:           inv.Number,
			Status:           inv.Status,
			AmountDue:        models.ToMajorUnits(inv.AmountDue),
			AmountPaid:       models.ToMajorUnits(inv.AmountPaid),
			Currency:         inv.Currency,
			HostedInvoiceURL: inv.HostedInvoiceURL,
			InvoicePDF:       inv.InvoicePDF,
			Created:          inv.Created,
		})
	}
	return out
}

// CouponValidationResponse describes a coupon the caller may redeem.
type CouponValidationResponse struct {
	Valid        bool                `json:"valid"`
	Code         string              `json:"code"`
	Description  string              `json:"description,omitempty"`
	DiscountType models.DiscountType `json:"discountType"`
	Discount     CouponDiscount      `json:"discount"`
}

// CouponDiscount is the effect of a coupon at checkout.
type CouponDiscount struct {
	WaivesDeploymentFee bool    `json:"waivesDeploymentFee"`
	DeploymentFeeAmount float64 `json:"deploymentFeeAmount"`
}

// CouponResponse is a coupon with its computed fields.
type CouponResponse struct {
	ID            string               `json:"id"`
	Code          string               `json:"code"`
	Description   string               `json:"description,omitempty"`
	DiscountType  models.DiscountType  `json:"discountType"`
	UsageLimit    int                  `json:"usageLimit"`
	UsageCount    int                  `json:"usageCount"`
	RemainingUses int                  `json:"remainingUses"`
	IsActive      bool                 `json:"isActive"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	IsExpired     bool                 `json:"isExpired"`
	IsValid       bool                 `json:"isValid"`
	CreatedBy     string               `json:"createdBy,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UsageHistory  []models.CouponUsage `json:"usageHistory,omitempty"`
}

func newCouponResponse(c *models.Coupon, now time.Time, withHistory bool) CouponResponse {
	out := CouponResponse{
		ID:            c.ID,
		Code:          c.Code,
		Description:   c.Description,
		DiscountType:  c.DiscountType,
		UsageLimit:    c.UsageLimit,
		UsageCount:    c.UsageCount,
		RemainingUses: c.RemainingUses(),
		IsActive:      c.IsActive,
		ExpiresAt:     c.ExpiresAt,
		IsExpired:     c.IsExpired(now),
		IsValid:       c.IsRedeemable(now),
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
	}
	if withHistory {
		out.UsageHistory = c.UsageHistory
	}
	return out
}

// CouponListResponse is one page of coupons.
type CouponListResponse struct {
	Coupons    []CouponResponse `json:"coupons"`
	Pagination core.Pagination  `json:"pagination"`
}

// CouponStatsResponse summarizes coupon usage.
type CouponStatsResponse struct {
	TotalCoupons     int     `json:"totalCoupons"`
	ActiveCoupons    int     `json:"activeCoupons"`
	TotalRedemptions int     `json:"totalRedemptions"`
	TotalFeesWaived  float64 `json:"totalFeesWaived"`
}

// DashboardResponse holds the admin dashboard figures.
type DashboardResponse struct {
	TotalUsers          int64          `json:"totalUsers"`
	ActiveSubscriptions int64          `json:"activeSubscriptions"`
	TotalAccounts       int64          `json:"totalAccounts"`
	PendingAccounts     int64          `json:"pendingAccounts"`
	TotalRevenue        float64        `json:"totalRevenue"`
	RevenueLast30Days   float64        `json:"revenueLast30Days"`
	RecentUsers         []*models.User `json:"recentUsers"`
}

// AdminUserResponse is a user row of the admin listing.
type AdminUserResponse struct {
	*models.User
	Subscription *SubscriptionSummary `json:"subscription"`
	AccountCount int64                `json:"accountCount"`
}

// AdminUserListResponse is one page of users.
type AdminUserListResponse struct {
	Users      []AdminUserResponse `json:"users"`
	Pagination core.Pagination     `json:"pagination"`
}

// AdminUserDetailResponse is the admin view of one user.
type AdminUserDetailResponse struct {
	User         *models.User            `json:"user"`
	Subscription *models.Subscription    `json:"subscription"`
	Accounts     []*models.TikTokAccount `json:"accounts"`
	Payments     []PaymentResponse       `json:"payments"`
}

// OwnerSummary is the short form of an account owner.
type OwnerSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// AdminAccountResponse is an account row of the admin listing.
type AdminAccountResponse struct {
	*models.TikTokAccount
	Owner        *OwnerSummary        `json:"owner"`
	Subscription *SubscriptionSummary `json:"subscription"`
}

// AdminAccountListResponse is one page of accounts.
type AdminAccountListResponse struct {
	Accounts   []AdminAccountResponse `json:"accounts"`
	Pagination core.Pagination        `json:"pagination"`
}

// DailyRevenueResponse is one day of the revenue series.
type DailyRevenueResponse struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// AnalyticsResponse holds the admin analytics figures.
type AnalyticsResponse struct {
	NewUsersLast30Days         int64                          `json:"newUsersLast30Days"`
	NewSubscriptionsLast30Days int                            `json:"newSubscriptionsLast30Days"`
	RevenueLast30Days          float64                        `json:"revenueLast30Days"`
	SubscriptionBreakdown      map[models.PlanType]int        `json:"subscriptionBreakdown"`
	AccountStatusBreakdown     map[models.AccountStatus]int64 `json:"accountStatusBreakdown"`
	DailyRevenue               []DailyRevenueResponse         `json:"dailyRevenue"`
}

// RecentActivityResponse lists the latest records of each kind.
type RecentActivityResponse struct {
	Users         []*models.User          `json:"users"`
	Subscriptions []*models.Subscription  `json:"subscriptions"`
	Payments      []PaymentResponse       `json:"payments"`
	Accounts      []*models.TikTokAccount `json:"accounts"`
	AuditLogs     []*models.AuditLog      `json:"auditLogs"`
}

// InstanceResponse is an instance as shown to admins, with its plaintext key.
type InstanceResponse struct {
	HasInstance    bool                  `json:"hasInstance"`
	AccountID      string                `json:"accountId,omitempty"`
	APIKey         string                `json:"apiKey,omitempty"`
	InstanceURL    string                `json:"instanceUrl,omitempty"`
	Status         models.InstanceStatus `json:"status,omitempty"`
	LastAccessedAt *time.Time            `json:"lastAccessedAt,omitempty"`
}

func newInstanceResponse(creds *core.InstanceCredentials) InstanceResponse {
	if creds == nil || creds.Instance == nil {
		return InstanceResponse{HasInstance: false}
	}
	inst := creds.Instance
	return InstanceResponse{
		HasInstance:    true,
		AccountID:      inst.AccountID,
		APIKey:         creds.APIKey,
		InstanceURL:    inst.InstanceURL,
		Status:         inst.Status,
		LastAccessedAt: inst.LastAccessedAt,
	}
}

// TokenInfoResponse is the result of verifying a token.
type TokenInfoResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}
