package core

import (
	"context"
	"time"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/billing"
	"o3-ttgifts-backend/internal/models"
)

// UserService resolves verified identities to local users and manages profiles.
type UserService interface {
	// ResolveOrProvision finds the user for a verified identity, creating it on
	// first sight and stamping lastLogin otherwise. Inactive users are rejected.
	ResolveOrProvision(ctx context.Context, identity *auth.Identity) (*Resolution, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// RequireAdmin loads the user and fails unless it is active and holds the admin role.
	RequireAdmin(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
	Deactivate(ctx context.Context, userID string) error
	SetRole(ctx context.Context, userID string, role models.Role) (*models.User, error)
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
	// Record writes an entry for actor and only logs a failure.
	Record(ctx context.Context, actor Actor, action, targetType, targetID string, details map[string]string)
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
}

// CouponService validates, redeems and administers coupons.
type CouponService interface {
	// Validate checks code for userID without reserving a use.
	Validate(ctx context.Context, code, userID string) (*models.Coupon, error)
	// Redeem atomically re-validates and records one use.
	Redeem(ctx context.Context, code, userID, subscriptionID string) (*models.Coupon, error)
	Create(ctx context.Context, actor Actor, req models.CreateCouponRequest) (*models.Coupon, error)
	List(ctx context.Context, filter CouponFilter) (*CouponPage, error)
	Get(ctx context.Context, code string) (*models.Coupon, error)
	Update(ctx context.Context, actor Actor, code string, req models.UpdateCouponRequest) (*models.Coupon, error)
	Delete(ctx context.Context, actor Actor, code string) error
	Stats(ctx context.Context) (*CouponStats, error)
}

// CheckoutService starts checkouts and reads a user's billing history.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, user *models.User, req models.CreateCheckoutSessionRequest) (*billing.CheckoutSession, error)
	PaymentHistory(ctx context.Context, userID string) ([]*models.Payment, error)
	Invoices(ctx context.Context, userID string) ([]billing.Invoice, error)
}

// ReconciliationService applies billing webhook events to local state.
type ReconciliationService interface {
	// HandleWebhook verifies and applies one webhook delivery. Unverifiable
	// payloads fail with ErrValidation; any other error asks the provider to retry.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error)
	Apply(ctx context.Context, event billing.Event) (Outcome, error)
}

// SubscriptionService reads and changes a user's governing subscription.
type SubscriptionService interface {
	Current(ctx context.Context, userID string) (*CurrentSubscription, error)
	Governing(ctx context.Context, userID string) (*models.Subscription, error)
	Usage(ctx context.Context, userID string) (*Usage, error)
	Cancel(ctx context.Context, userID string) (*models.Subscription, error)
	Reactivate(ctx context.Context, userID string) (*models.Subscription, error)
	ChangePlan(ctx context.Context, userID string, newPlan models.PlanType) (*models.Subscription, error)
}

// AccountService manages a user's tracked TikTok accounts.
type AccountService interface {
	List(ctx context.Context, userID string) ([]*models.TikTokAccount, error)
	Create(ctx context.Context, userID string, req models.CreateAccountRequest) (*models.TikTokAccount, error)
	Get(ctx context.Context, userID, accountID string) (*models.TikTokAccount, error)
	Update(ctx context.Context, userID, accountID string, req models.UpdateAccountRequest) (*models.TikTokAccount, error)
	// Delete is a soft delete that flags the account for disconnection.
	Delete(ctx context.Context, userID, accountID string) error
	Sync(ctx context.Context, userID, accountID string) (*models.TikTokAccount, error)
}

// InstanceService authenticates tracker instances, serves their documents and
// manages their credentials.
type InstanceService interface {
	Authenticate(ctx context.Context, apiKey, accountID string) (*models.TrackerInstance, error)
	GiftGroups(ctx context.Context, accountID string) (models.GiftGroups, error)
	SaveGiftGroups(ctx context.Context, accountID string, raw []byte) (models.GiftGroups, error)
	Config(ctx context.Context, accountID string) (models.InstanceConfig, error)
	MergeConfig(ctx context.Context, accountID string, raw []byte) (models.InstanceConfig, error)
	Analytics(ctx context.Context, accountID string) (models.AnalyticsSnapshot, error)
	SaveAnalytics(ctx context.Context, accountID string, raw []byte) error

	// Lookup returns the instance with its decrypted key, or nil when the
	// account has none.
	Lookup(ctx context.Context, accountID string) (*InstanceCredentials, error)
	GenerateKey(ctx context.Context, actor Actor, accountID string) (*InstanceCredentials, error)
	RegenerateKey(ctx context.Context, actor Actor, accountID string) (*InstanceCredentials, error)
	UpdateURL(ctx context.Context, actor Actor, accountID, instanceURL string) (*models.TrackerInstance, error)
	// Disconnect removes the instance, its documents and the account.
	Disconnect(ctx context.Context, actor Actor, accountID string) error
}

// AdminService backs the back-office views.
type AdminService interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	ListUsers(ctx context.Context, filter UserFilter) (*UserPage, error)
	UserDetail(ctx context.Context, userID string) (*UserDetail, error)
	UpdateUser(ctx context.Context, actor Actor, userID string, req models.AdminUpdateUserRequest) (*models.User, error)
	ListAccounts(ctx context.Context, filter AccountFilter) (*AccountPage, error)
	UpdateAccount(ctx context.Context, actor Actor, accountID string, req models.AdminUpdateAccountRequest) (*models.TikTokAccount, error)
	DeleteAccount(ctx context.Context, actor Actor, accountID string) error
	Analytics(ctx context.Context) (*Analytics, error)
	RecentActivity(ctx context.Context, limit int) (*RecentActivity, error)
}

// Actor identifies who performed an administrative action.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// Resolution is the result of resolving a verified identity.
type Resolution struct {
	User    *models.User
	Created bool
}

// Outcome describes what reconciliation did with an event.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUncorrelated Outcome = "uncorrelated"
	OutcomeIgnored      Outcome = "ignored"
)

// Page is a 1-based page request. Zero values select the caller's defaults.
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize(defaultLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p Page) offset() int { return (p.Page - 1) * p.Limit }

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func newPagination(p Page, total int) Pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (int64(total) + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: int64(total), Pages: pages}
}

// paginate returns the slice of items on page p.
func paginate[T any](items []T, p Page) []T {
	start := p.offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// CouponFilter selects coupons for the admin listing. Status is one of
// "active", "inactive", "expired" or empty for all.
type CouponFilter struct {
	Page
	Status string
}

// CouponPage is one page of coupons.
type CouponPage struct {
	Coupons    []*models.Coupon
	Pagination Pagination
}

// CouponStats summarizes coupon usage.
type CouponStats struct {
	TotalCoupons     int
	ActiveCoupons    int
	TotalRedemptions int
	// TotalFeesWaived is in minor units.
	TotalFeesWaived int64
}

// CurrentSubscription is the governing subscription with its plan and usage.
type CurrentSubscription struct {
	Subscription  *models.Subscription
	Plan          models.Plan
	AccountsUsed  int64
	AccountsLimit int
}

// Usage reports consumption against the plan quotas.
type Usage struct {
	Plan            models.PlanType
	AccountsUsed    int64
	AccountsLimit   int
	GiftGroupsUsed  int
	GiftGroupsLimit int
}

// InstanceCredentials is an instance together with its plaintext API key.
type InstanceCredentials struct {
	Instance *models.TrackerInstance
	APIKey   string
}

// Dashboard holds the admin dashboard figures. Revenue is in minor units.
type Dashboard struct {
	TotalUsers          int64
	ActiveSubscriptions int64
	TotalAccounts       int64
	PendingAccounts     int64
	TotalRevenue        int64
	RevenueLast30Days   int64
	RecentUsers         []*models.User
}

// UserFilter selects users for the admin listing.
type UserFilter struct {
	Page
	Search string
}

// UserSummary is a user with its governing subscription and account count.
type UserSummary struct {
	User         *models.User
	Subscription *models.Subscription
	AccountCount int64
}

// UserPage is one page of users.
type UserPage struct {
	Users      []UserSummary
	Pagination Pagination
}

// UserDetail is the admin view of a single user.
type UserDetail struct {
	User         *models.User
	Subscription *models.Subscription
	Accounts     []*models.TikTokAccount
	Payments     []*models.Payment
}

// AccountFilter selects accounts for the admin listing. Status may also be
// "disconnection" to select accounts flagged for disconnection.
type AccountFilter struct {
	Page
	Status string
	Search string
}

// AccountSummary is an account with its owner and the owner's subscription.
type AccountSummary struct {
	Account      *models.TikTokAccount
	Owner        *models.User
	Subscription *models.Subscription
}

// AccountPage is one page of accounts.
type AccountPage struct {
	Accounts   []AccountSummary
	Pagination Pagination
}

// Analytics holds the admin analytics figures. Amounts are in minor units.
type Analytics struct {
	NewUsersLast30Days         int64
	NewSubscriptionsLast30Days int
	RevenueLast30Days          int64
	SubscriptionBreakdown      map[models.PlanType]int
	AccountStatusBreakdown     map[models.AccountStatus]int64
	DailyRevenue               []DailyRevenue
}

// DailyRevenue is the succeeded payment total of one UTC day.
type DailyRevenue struct {
	Date   string
	Amount int64
	Count  int
}

// RecentActivity lists the latest records of each kind.
type RecentActivity struct {
	Users         []*models.User
	Subscriptions []*models.Subscription
	Payments      []*models.Payment
	Accounts      []*models.TikTokAccount
	AuditLogs     []*models.AuditLog
}

// clock is overridden in tests.
type clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
