package db

import (
	"context"
	"time"

	"o3-ttgifts-backend/internal/models"
)

// UserRepository defines the interface for user data storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Create fails with ErrAlreadyExists when the ID is taken.
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, userID string, mutate func(*models.User) error) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error) // Newest first
	ListRecent(ctx context.Context, limit int) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

// SubscriptionRepository defines the interface for subscription storage.
// Lists are ordered newest first.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	Update(ctx context.Context, id string, mutate func(*models.Subscription) error) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID string, statuses ...models.SubscriptionStatus) ([]*models.Subscription, error)
	ListByUserAndCustomer(ctx context.Context, userID, customerID string) ([]*models.Subscription, error)
	FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	FindLatestByCustomer(ctx context.Context, customerID string) (*models.Subscription, error)
	ListByStatus(ctx context.Context, statuses ...models.SubscriptionStatus) ([]*models.Subscription, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]*models.Subscription, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Subscription, error)
	CountByStatus(ctx context.Context, statuses ...models.SubscriptionStatus) (int64, error)
}

// PaymentRepository defines the interface for the append-only payment ledger.
type PaymentRepository interface {
	// Create fails with ErrAlreadyExists when a row with the same ID was already recorded.
	Create(ctx context.Context, payment *models.Payment) error
	// Exists reports whether a row with id was already recorded.
	Exists(ctx context.Context, id string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Payment, error)
	ListByStatusSince(ctx context.Context, status models.PaymentStatus, since time.Time) ([]*models.Payment, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Payment, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// AccountRepository defines the interface for tracked TikTok accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.TikTokAccount) error
	GetByID(ctx context.Context, id string) (*models.TikTokAccount, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.TikTokAccount, error)
	Update(ctx context.Context, id string, mutate func(*models.TikTokAccount) error) (*models.TikTokAccount, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.TikTokAccount, error) // Newest first
	List(ctx context.Context) ([]*models.TikTokAccount, error)                      // Newest first
	ListRecent(ctx context.Context, limit int) ([]*models.TikTokAccount, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status models.AccountStatus) (int64, error)
}

// CouponRepository defines the interface for coupon storage. Coupons are keyed
// by their upper-cased code.
type CouponRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	Update(ctx context.Context, code string, mutate func(*models.Coupon) error) (*models.Coupon, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]*models.Coupon, error) // Newest first
}

// InstanceRepository defines the interface for tracker instance credentials,
// keyed by account ID.
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.TrackerInstance) error
	GetByAccountID(ctx context.Context, accountID string) (*models.TrackerInstance, error)
	Update(ctx context.Context, accountID string, mutate func(*models.TrackerInstance) error) (*models.TrackerInstance, error)
	Delete(ctx context.Context, accountID string) error
}

// InstanceDataRepository defines the interface for per-account instance documents.
type InstanceDataRepository interface {
	Get(ctx context.Context, accountID string, dataType models.InstanceDataType) (*models.InstanceData, error)
	// FindOrCreate stores def when no document exists yet and returns the stored document.
	FindOrCreate(ctx context.Context, accountID string, def models.InstanceDocument) (*models.InstanceData, error)
	Upsert(ctx context.Context, accountID string, doc models.InstanceDocument) (*models.InstanceData, error)
	DeleteForAccount(ctx context.Context, accountID string) error
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
}
