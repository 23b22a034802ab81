package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
)

func newTrackedAccount(t *testing.T, env *testEnv) *models.TikTokAccount {
	t.Helper()
	env.activeSubscription(t, "u1", models.PlanStarter)
	account, err := env.accountService.Create(context.Background(), "u1", models.CreateAccountRequest{AccountName: "Main"})
	require.NoError(t, err)
	return account
}

func TestInstanceKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := newTrackedAccount(t, env)
	admin := Actor{UserID: "admin"}

	_, err := env.instanceService.GenerateKey(ctx, admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	creds, err := env.instanceService.GenerateKey(ctx, admin, account.ID)
	require.NoError(t, err)
	require.NotEmpty(t, creds.APIKey)
	assert.Equal(t, creds.APIKey[:8], creds.Instance.APIKeyPrefix)
	assert.NotEqual(t, creds.APIKey, creds.Instance.APIKeyHash)

	_, err = env.instanceService.GenerateKey(ctx, admin, account.ID)
	assert.ErrorIs(t, err, ErrConflict)

	instance, err := env.instanceService.Authenticate(ctx, creds.APIKey, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", instance.UserID)

	looked, err := env.instanceService.Lookup(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, creds.APIKey, looked.APIKey)

	rotated, err := env.instanceService.RegenerateKey(ctx, admin, account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, creds.APIKey, rotated.APIKey)

	_, err = env.instanceService.Authenticate(ctx, creds.APIKey, account.ID)
	assert.ErrorIs(t, err, ErrUnauthorized, "old key stops working")
	_, err = env.instanceService.Authenticate(ctx, rotated.APIKey, account.ID)
	require.NoError(t, err)

	_, err = env.instanceService.RegenerateKey(ctx, admin, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := env.instanceService.UpdateURL(ctx, admin, account.ID, " https://tracker.test ")
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.test", updated.InstanceURL)
	_, err = env.instanceService.UpdateURL(ctx, admin, account.ID, " ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInstanceAuthenticateRejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := newTrackedAccount(t, env)
	creds, err := env.instanceService.GenerateKey(ctx, Actor{UserID: "admin"}, account.ID)
	require.NoError(t, err)

	tests := []struct {
		name, key, account string
	}{
		{"missing key", "", account.ID},
		{"missing account", creds.APIKey, ""},
		{"wrong key", "not-the-key", account.ID},
		{"wrong account", creds.APIKey, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.instanceService.Authenticate(ctx, tt.key, tt.account)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestInstanceDocuments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := newTrackedAccount(t, env)

	groups, err := env.instanceService.GiftGroups(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, err = env.instanceService.SaveGiftGroups(ctx, account.ID, []byte(`["not","an","object"]`))
	assert.ErrorIs(t, err, ErrValidation)

	saved, err := env.instanceService.SaveGiftGroups(ctx, account.ID, []byte(`{"roses":{"gifts":["Rose"]}}`))
	require.NoError(t, err)
	assert.Len(t, saved, 1)
	stored, err := env.accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.GiftGroupsCount)

	cfg, err := env.instanceService.Config(ctx, account.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `"dark"`, string(cfg["theme"]))

	merged, err := env.instanceService.MergeConfig(ctx, account.ID, []byte(`{"theme":"light","volume":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"light"`, string(merged["theme"]))
	assert.JSONEq(t, `"en"`, string(merged["language"]), "untouched keys survive a merge")
	assert.JSONEq(t, `3`, string(merged["volume"]))

	_, err = env.instanceService.MergeConfig(ctx, account.ID, []byte(`42`))
	assert.ErrorIs(t, err, ErrValidation)

	snapshot, err := env.instanceService.Analytics(ctx, account.ID)
	require.NoError(t, err)
	body, err := json.Marshal(snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(body))

	require.NoError(t, env.instanceService.SaveAnalytics(ctx, account.ID, []byte(`{"viewers":12}`)))
	assert.ErrorIs(t, env.instanceService.SaveAnalytics(ctx, account.ID, []byte(`[1]`)), ErrValidation)
	snapshot, err = env.instanceService.Analytics(ctx, account.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"viewers":12}`, string(snapshot))
}

func TestInstanceDisconnect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := newTrackedAccount(t, env)
	admin := Actor{UserID: "admin"}
	creds, err := env.instanceService.GenerateKey(ctx, admin, account.ID)
	require.NoError(t, err)
	_, err = env.instanceService.SaveGiftGroups(ctx, account.ID, []byte(`{"roses":{}}`))
	require.NoError(t, err)

	require.NoError(t, env.instanceService.Disconnect(ctx, admin, account.ID))

	_, err = env.accounts.GetByID(ctx, account.ID)
	assert.True(t, db.IsNotFound(err))
	looked, err := env.instanceService.Lookup(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, looked)
	_, err = env.instanceService.Authenticate(ctx, creds.APIKey, account.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.ErrorIs(t, env.instanceService.Disconnect(ctx, admin, account.ID), ErrNotFound)
}
