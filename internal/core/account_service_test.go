package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"o3-ttgifts-backend/internal/models"
)

func TestAccountCreateRequiresGoverningSubscription(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.accountService.Create(context.Background(), "u1", models.CreateAccountRequest{AccountName: "Main"})
	assert.ErrorIs(t, err, ErrNoGoverningSubscription)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAccountQuotaBoundary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.activeSubscription(t, "u1", models.PlanProfessional)

	var created []*models.TikTokAccount
	for _, name := range []string{"one", "two", "three"} {
		a, err := env.accountService.Create(ctx, "u1", models.CreateAccountRequest{AccountName: name})
		require.NoError(t, err)
		assert.Equal(t, models.AccountActive, a.Status)
		created = append(created, a)
	}

	_, err := env.accountService.Create(ctx, "u1", models.CreateAccountRequest{AccountName: "four"})
	assert.ErrorIs(t, err, ErrAccountQuotaReached)
	assert.Equal(t, "Account limit reached. Your Professional plan allows 3 accounts. Please upgrade your plan.", Message(err, ""))

	// A soft-deleted account frees its slot.
	require.NoError(t, env.accountService.Delete(ctx, "u1", created[0].ID))
	gone, err := env.accountService.Get(ctx, "u1", created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountInactive, gone.Status)
	assert.True(t, gone.DisconnectionRequested)
	assert.NotNil(t, gone.DisconnectionRequestedAt)

	_, err = env.accountService.Create(ctx, "u1", models.CreateAccountRequest{AccountName: "four"})
	require.NoError(t, err)

	current, err := env.subscriptions.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), current.AccountsUsed)
	assert.Equal(t, 3, current.AccountsLimit)
}

func TestAccountOwnershipAndUniqueness(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.activeSubscription(t, "u1", models.PlanEnterprise)
	env.activeSubscription(t, "u2", models.PlanEnterprise)

	mine, err := env.accountService.Create(ctx, "u1", models.CreateAccountRequest{AccountName: "Main", AccountID: "tt-1"})
	require.NoError(t, err)

	_, err = env.accountService.Create(ctx, "u2", models.CreateAccountRequest{AccountName: "Copy", AccountID: "tt-1"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.accountService.Get(ctx, "u2", mine.ID)
	assert.ErrorIs(t, err, ErrNotFound, "other users' accounts read as missing")

	name := "Renamed"
	_, err = env.accountService.Update(ctx, "u2", mine.ID, models.UpdateAccountRequest{AccountName: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	same := "tt-1"
	updated, err := env.accountService.Update(ctx, "u1", mine.ID, models.UpdateAccountRequest{AccountName: &name, AccountID: &same})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.AccountName)

	bogus := models.AccountStatus("deleted")
	_, err = env.accountService.Update(ctx, "u1", mine.ID, models.UpdateAccountRequest{Status: &bogus})
	assert.ErrorIs(t, err, ErrValidation)

	synced, err := env.accountService.Sync(ctx, "u1", mine.ID)
	require.NoError(t, err)
	assert.NotNil(t, synced.LastSyncedAt)

	list, err := env.accountService.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubscriptionCancelReactivateAndChangePlan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.subscriptions.Cancel(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	sub := env.activeSubscription(t, "u1", models.PlanStarter)

	canceled, err := env.subscriptions.Cancel(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, canceled.CancelAtPeriodEnd)
	assert.NotNil(t, canceled.CurrentPeriodEnd)
	assert.True(t, env.engine.cancels[sub.StripeSubscriptionID])

	reactivated, err := env.subscriptions.Reactivate(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, reactivated.CancelAtPeriodEnd)

	_, err = env.subscriptions.Reactivate(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.subscriptions.ChangePlan(ctx, "u1", models.PlanStarter)
	assert.ErrorIs(t, err, ErrValidation)

	changed, err := env.subscriptions.ChangePlan(ctx, "u1", models.PlanEnterprise)
	require.NoError(t, err)
	assert.Equal(t, models.PlanEnterprise, changed.Plan)
	require.Len(t, env.engine.changes, 1)
	assert.Equal(t, "O3 TT Gifts - Enterprise Plan", env.engine.changes[0].ProductName)
	assert.Equal(t, int64(23000), env.engine.changes[0].MonthlyAmount)
}

func TestSubscriptionUsage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.activeSubscription(t, "u1", models.PlanProfessional)

	a, err := env.accountService.Create(ctx, "u1", models.CreateAccountRequest{AccountName: "Main"})
	require.NoError(t, err)
	_, err = env.instanceService.SaveGiftGroups(ctx, a.ID, []byte(`{"roses":{"gifts":["Rose"]},"lions":{"gifts":["Lion"]}}`))
	require.NoError(t, err)

	usage, err := env.subscriptions.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.AccountsUsed)
	assert.Equal(t, 3, usage.AccountsLimit)
	assert.Equal(t, 2, usage.GiftGroupsUsed)
	assert.Equal(t, 15, usage.GiftGroupsLimit)
}
