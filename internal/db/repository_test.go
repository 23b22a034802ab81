package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

func TestSubscriptionRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepository(database.NewMemoryStore())
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	subs := []*models.Subscription{
		{UserID: "u1", StripeCustomerID: "cus_1", Status: models.StatusCanceled, CreatedAt: base},
		{UserID: "u1", StripeCustomerID: "cus_1", Status: models.StatusIncomplete, CreatedAt: base.Add(time.Hour)},
		{UserID: "u1", StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1", Status: models.StatusActive, CreatedAt: base.Add(2 * time.Hour)},
		{UserID: "u2", StripeCustomerID: "cus_2", Status: models.StatusPastDue, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, s := range subs {
		require.NoError(t, repo.Create(ctx, s))
		require.NotEmpty(t, s.ID)
	}

	governing, err := repo.ListByUser(ctx, "u1", models.GoverningStatuses...)
	require.NoError(t, err)
	require.Len(t, governing, 1)
	assert.Equal(t, "sub_1", governing[0].StripeSubscriptionID)

	all, err := repo.ListByUserAndCustomer(ctx, "u1", "cus_1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.StatusActive, all[0].Status, "newest first")

	found, err := repo.FindByStripeSubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, subs[2].ID, found.ID)

	_, err = repo.FindByStripeSubscriptionID(ctx, "sub_missing")
	assert.True(t, IsNotFound(err))

	latest, err := repo.FindLatestByCustomer(ctx, "cus_2")
	require.NoError(t, err)
	assert.Equal(t, "u2", latest.UserID)

	n, err := repo.CountByStatus(ctx, models.GoverningStatuses...)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	updated, err := repo.Update(ctx, subs[1].ID, func(s *models.Subscription) error {
		s.Status = models.StatusActive
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, updated.Status)
	assert.False(t, updated.UpdatedAt.IsZero())
}

func TestPaymentRepositoryRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(database.NewMemoryStore())

	p := &models.Payment{ID: "evt_1", UserID: "u1", Amount: 100, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, p))

	err := repo.Create(ctx, &models.Payment{ID: "evt_1", UserID: "u1"})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	exists, err := repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCouponRepositoryNormalizesCode(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(database.NewMemoryStore())

	require.NoError(t, repo.Create(ctx, &models.Coupon{Code: " launch50 ", UsageLimit: 1, IsActive: true}))
	err := repo.Create(ctx, &models.Coupon{Code: "LAUNCH50"})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	c, err := repo.GetByCode(ctx, "Launch50")
	require.NoError(t, err)
	assert.Equal(t, "LAUNCH50", c.ID)
	assert.Equal(t, "LAUNCH50", c.Code)

	_, err = repo.GetByCode(ctx, "  ")
	assert.True(t, IsNotFound(err))
}

func TestInstanceDataFindOrCreateAndUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewInstanceDataRepository(database.NewMemoryStore())

	data, err := repo.FindOrCreate(ctx, "acc1", models.DefaultInstanceConfig())
	require.NoError(t, err)
	doc, err := data.Decode()
	require.NoError(t, err)
	assert.JSONEq(t, `"dark"`, string(doc.(models.InstanceConfig)["theme"]))

	// A second load returns the stored document, not the default.
	_, err = repo.Upsert(ctx, "acc1", models.InstanceConfig{"theme": json.RawMessage(`"light"`)})
	require.NoError(t, err)
	again, err := repo.FindOrCreate(ctx, "acc1", models.DefaultInstanceConfig())
	require.NoError(t, err)
	doc, err = again.Decode()
	require.NoError(t, err)
	assert.JSONEq(t, `"light"`, string(doc.(models.InstanceConfig)["theme"]))

	require.NoError(t, repo.DeleteForAccount(ctx, "acc1"))
	_, err = repo.Get(ctx, "acc1", models.DataConfig)
	assert.True(t, IsNotFound(err))
}

func TestInstanceRepositoryOnePerAccount(t *testing.T) {
	ctx := context.Background()
	repo := NewInstanceRepository(database.NewMemoryStore())

	require.NoError(t, repo.Create(ctx, &models.TrackerInstance{AccountID: "acc1", APIKeyHash: "h"}))
	err := repo.Create(ctx, &models.TrackerInstance{AccountID: "acc1"})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	got, err := repo.GetByAccountID(ctx, "acc1")
	require.NoError(t, err)
	assert.Equal(t, "h", got.APIKeyHash, "hash survives storage even though it is hidden from JSON")
}
