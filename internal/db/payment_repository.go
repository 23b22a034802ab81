package db

import (
	"context"
	"fmt"
	"time"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

type paymentRepository struct {
	payments collection[models.Payment]
}

// NewPaymentRepository creates a PaymentRepository over store.
func NewPaymentRepository(store database.Store) PaymentRepository {
	return &paymentRepository{payments: collection[models.Payment]{store: store, name: paymentsCollection}}
}

// Create inserts the row. Rows are never updated, so a taken ID means the
// event behind it was already recorded.
func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = newID()
	}
	if err := r.payments.create(ctx, payment.ID, payment); err != nil {
		return fmt.Errorf("failed to record payment '%s': %w", payment.ID, err)
	}
	return nil
}

func (r *paymentRepository) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := r.payments.get(ctx, id); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up payment '%s': %w", id, err)
	}
	return true, nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Payment, error) {
	q := newestFirst(database.Where("userId", database.OpEqual, userID))
	q.Limit = limit
	return r.payments.find(ctx, q)
}

func (r *paymentRepository) ListByStatusSince(ctx context.Context, status models.PaymentStatus, since time.Time) ([]*models.Payment, error) {
	return r.payments.find(ctx, database.Query{
		Filters: []database.Filter{
			database.Where("status", database.OpEqual, string(status)),
			database.Where("createdAt", database.OpGreaterOrEqual, since),
		},
		OrderBy: "createdAt",
	})
}

func (r *paymentRepository) ListRecent(ctx context.Context, limit int) ([]*models.Payment, error) {
	q := newestFirst()
	q.Limit = limit
	return r.payments.find(ctx, q)
}

func (r *paymentRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.payments.count(ctx, database.Where("userId", database.OpEqual, userID))
}
