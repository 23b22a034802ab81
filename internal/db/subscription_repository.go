package db

import (
	"context"
	"fmt"
	"time"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

type subscriptionRepository struct {
	subs collection[models.Subscription]
}

// NewSubscriptionRepository creates a SubscriptionRepository over store.
func NewSubscriptionRepository(store database.Store) SubscriptionRepository {
	return &subscriptionRepository{subs: collection[models.Subscription]{store: store, name: subscriptionsCollection}}
}

func statusFilter(statuses []models.SubscriptionStatus) database.Filter {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return database.Where("status", database.OpIn, values)
}

func newestFirst(filters ...database.Filter) database.Query {
	return database.Query{Filters: filters, OrderBy: "createdAt", Descending: true}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = newID()
	}
	if err := r.subs.create(ctx, sub.ID, sub); err != nil {
		return fmt.Errorf("failed to create subscription for user '%s': %w", sub.UserID, err)
	}
	return nil
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := r.subs.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription '%s': %w", id, err)
	}
	return sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, id string, mutate func(*models.Subscription) error) (*models.Subscription, error) {
	return r.subs.update(ctx, id, func(s *models.Subscription) error {
		if err := mutate(s); err != nil {
			return err
		}
		s.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID string, statuses ...models.SubscriptionStatus) ([]*models.Subscription, error) {
	filters := []database.Filter{database.Where("userId", database.OpEqual, userID)}
	if len(statuses) > 0 {
		filters = append(filters, statusFilter(statuses))
	}
	return r.subs.find(ctx, newestFirst(filters...))
}

func (r *subscriptionRepository) ListByUserAndCustomer(ctx context.Context, userID, customerID string) ([]*models.Subscription, error) {
	return r.subs.find(ctx, newestFirst(
		database.Where("userId", database.OpEqual, userID),
		database.Where("stripeCustomerId", database.OpEqual, customerID),
	))
}

func (r *subscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	sub, err := r.subs.first(ctx, database.Query{
		Filters: []database.Filter{database.Where("stripeSubscriptionId", database.OpEqual, stripeSubscriptionID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription '%s': %w", stripeSubscriptionID, err)
	}
	return sub, nil
}

func (r *subscriptionRepository) FindLatestByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	sub, err := r.subs.first(ctx, newestFirst(database.Where("stripeCustomerId", database.OpEqual, customerID)))
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription for customer '%s': %w", customerID, err)
	}
	return sub, nil
}

func (r *subscriptionRepository) ListByStatus(ctx context.Context, statuses ...models.SubscriptionStatus) ([]*models.Subscription, error) {
	return r.subs.find(ctx, newestFirst(statusFilter(statuses)))
}

func (r *subscriptionRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*models.Subscription, error) {
	return r.subs.find(ctx, newestFirst(database.Where("createdAt", database.OpGreaterOrEqual, since)))
}

func (r *subscriptionRepository) ListRecent(ctx context.Context, limit int) ([]*models.Subscription, error) {
	q := newestFirst()
	q.Limit = limit
	return r.subs.find(ctx, q)
}

func (r *subscriptionRepository) CountByStatus(ctx context.Context, statuses ...models.SubscriptionStatus) (int64, error) {
	return r.subs.count(ctx, statusFilter(statuses))
}
