package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/models"
)

func TestResolveOrProvision(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	identity := &auth.Identity{UID: "u1", Email: "Streamer@Example.com", Name: "Streamer", EmailVerified: true}

	first, err := env.userService.ResolveOrProvision(ctx, identity)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "streamer@example.com", first.User.Email)
	assert.Equal(t, models.RoleUser, first.User.Role)
	assert.True(t, first.User.IsActive)

	second, err := env.userService.ResolveOrProvision(ctx, identity)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.NotNil(t, second.User.LastLogin)

	byEmail, err := env.userService.GetByEmail(ctx, "streamer@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = env.userService.RequireAdmin(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotAdmin)
	_, err = env.userService.RequireAdmin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.userService.Deactivate(ctx, "u1"))
	_, err = env.userService.ResolveOrProvision(ctx, identity)
	assert.ErrorIs(t, err, ErrInactiveUser)

	_, err = env.userService.ResolveOrProvision(ctx, &auth.Identity{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.provision(t, "u1")

	_, err := env.userService.UpdateProfile(ctx, "u1", models.UpdateProfileRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	name := "New Name"
	user, err := env.userService.UpdateProfile(ctx, "u1", models.UpdateProfileRequest{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.DisplayName)

	_, err = env.userService.UpdateProfile(ctx, "ghost", models.UpdateProfileRequest{DisplayName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminUserManagement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := Actor{UserID: "admin"}
	env.provision(t, "alice")
	env.provision(t, "bob")
	env.activeSubscription(t, "alice", models.PlanStarter)

	page, err := env.adminService.ListUsers(ctx, UserFilter{Search: "ALI"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "alice", page.Users[0].User.ID)
	require.NotNil(t, page.Users[0].Subscription)
	assert.Equal(t, int64(1), page.Pagination.Total)

	all, err := env.adminService.ListUsers(ctx, UserFilter{Page: Page{Page: 1, Limit: 1}})
	require.NoError(t, err)
	assert.Len(t, all.Users, 1)
	assert.Equal(t, int64(2), all.Pagination.Pages)

	role := models.RoleAdmin
	updated, err := env.adminService.UpdateUser(ctx, admin, "bob", models.AdminUpdateUserRequest{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	_, err = env.userService.RequireAdmin(ctx, "bob")
	assert.NoError(t, err)

	bad := models.Role("root")
	_, err = env.adminService.UpdateUser(ctx, admin, "bob", models.AdminUpdateUserRequest{Role: &bad})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.adminService.UpdateUser(ctx, admin, "bob", models.AdminUpdateUserRequest{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.adminService.UpdateUser(ctx, admin, "ghost", models.AdminUpdateUserRequest{Role: &role})
	assert.ErrorIs(t, err, ErrNotFound)

	detail, err := env.adminService.UserDetail(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, detail.Subscription)
	assert.Empty(t, detail.Accounts)
}

func TestAdminAccountManagement(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin := Actor{UserID: "admin"}
	env.provision(t, "u1")
	env.activeSubscription(t, "u1", models.PlanEnterprise)

	pending := &models.TikTokAccount{UserID: "u1", AccountName: "Pending", AccountHandle: "@pending", Status: models.AccountPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, env.accounts.Create(ctx, pending))
	active, err := env.accountService.Create(ctx, "u1", models.CreateAccountRequest{AccountName: "Live"})
	require.NoError(t, err)
	require.NoError(t, env.accountService.Delete(ctx, "u1", active.ID))

	page, err := env.adminService.ListAccounts(ctx, AccountFilter{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, page.Accounts, 1)
	assert.Equal(t, "u1", page.Accounts[0].Owner.ID)
	assert.NotNil(t, page.Accounts[0].Subscription)

	page, err = env.adminService.ListAccounts(ctx, AccountFilter{Status: "disconnection"})
	require.NoError(t, err)
	require.Len(t, page.Accounts, 1)
	assert.Equal(t, active.ID, page.Accounts[0].Account.ID)

	page, err = env.adminService.ListAccounts(ctx, AccountFilter{Search: "@PEND"})
	require.NoError(t, err)
	assert.Len(t, page.Accounts, 1)

	url := "https://tracker.test/pending"
	updated, err := env.adminService.UpdateAccount(ctx, admin, pending.ID, models.AdminUpdateAccountRequest{AccessURL: &url})
	require.NoError(t, err)
	assert.Equal(t, models.AccountActive, updated.Status, "assigning a URL activates a pending account")

	suspended := models.AccountSuspended
	_, err = env.adminService.UpdateAccount(ctx, admin, pending.ID, models.AdminUpdateAccountRequest{Status: &suspended})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.adminService.DeleteAccount(ctx, admin, pending.ID))
	assert.ErrorIs(t, env.adminService.DeleteAccount(ctx, admin, pending.ID), ErrNotFound)
}

func TestAdminReporting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.provision(t, "u1")
	env.provision(t, "u2")
	sub := env.activeSubscription(t, "u1", models.PlanProfessional)

	for _, id := range []string{"evt_1", "evt_2"} {
		_, err := env.deliver(t, id, "invoice.payment_succeeded", map[string]interface{}{
			"id": "in_" + id, "customer": sub.StripeCustomerID, "amount_paid": 8000,
		})
		require.NoError(t, err)
	}
	_, err := env.deliver(t, "evt_3", "invoice.payment_failed", map[string]interface{}{
		"id": "in_evt_3", "customer": sub.StripeCustomerID, "amount_due": 8000,
	})
	require.NoError(t, err)

	dash, err := env.adminService.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dash.TotalUsers)
	assert.Equal(t, int64(1), dash.ActiveSubscriptions)
	assert.Equal(t, int64(16000), dash.TotalRevenue, "failed payments are not revenue")
	assert.Equal(t, int64(16000), dash.RevenueLast30Days)
	assert.Len(t, dash.RecentUsers, 2)

	analytics, err := env.adminService.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), analytics.NewUsersLast30Days)
	assert.Equal(t, 1, analytics.NewSubscriptionsLast30Days)
	assert.Equal(t, 1, analytics.SubscriptionBreakdown[models.PlanProfessional])
	require.Len(t, analytics.DailyRevenue, 1)
	assert.Equal(t, 2, analytics.DailyRevenue[0].Count)
	assert.Equal(t, int64(16000), analytics.DailyRevenue[0].Amount)

	activity, err := env.adminService.RecentActivity(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, activity.Users, 2)
	assert.Len(t, activity.Payments, 3)
}

func TestDailyRevenueOrdering(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 4, d, 15, 0, 0, 0, time.UTC) }
	out := dailyRevenue([]*models.Payment{
		{Amount: 100, CreatedAt: day(3)},
		{Amount: 200, CreatedAt: day(1)},
		{Amount: 300, CreatedAt: day(3)},
	})
	require.Len(t, out, 2)
	assert.Equal(t, DailyRevenue{Date: "2026-04-01", Amount: 200, Count: 1}, out[0])
	assert.Equal(t, DailyRevenue{Date: "2026-04-03", Amount: 400, Count: 2}, out[1])
}
