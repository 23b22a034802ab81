package config

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("FIREBASE_PROJECT_ID", "o3-test")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.Equal(t, DriverFirestore, cfg.DatabaseDriver)
	assert.Equal(t, "o3_ttgifts", cfg.MongoDatabase)
	assert.Equal(t, AuthFirebase, cfg.AuthProvider)
	assert.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	assert.True(t, cfg.RateLimitEnabled)
	assert.True(t, cfg.MetricsEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_DRIVER", "Memory")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.DatabaseDriver)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
	assert.Contains(t, cfg.AllowedOrigins(), "https://app.example.com")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppEnv:              EnvProduction,
			DatabaseDriver:      DriverFirestore,
			AuthProvider:        AuthFirebase,
			FirebaseProjectID:   "o3",
			EncryptionKey:       testKey,
			StripeSecretKey:     "sk_live",
			StripeWebhookSecret: "whsec_real",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing encryption key", func(c *Config) { c.EncryptionKey = "" }, "ENCRYPTION_KEY is required"},
		{"short encryption key", func(c *Config) { c.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short")) }, "32 bytes"},
		{"mongo without uri", func(c *Config) { c.DatabaseDriver = DriverMongo }, "MONGODB_URI"},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "sqlite" }, "DATABASE_DRIVER"},
		{"jwt in production", func(c *Config) { c.AuthProvider = AuthJWT; c.AuthJWTSecret = "s" }, "only allowed"},
		{"missing project", func(c *Config) { c.FirebaseProjectID = "" }, "FIREBASE_PROJECT_ID"},
		{"missing stripe key", func(c *Config) { c.StripeSecretKey = "" }, "STRIPE_SECRET_KEY"},
		{"missing webhook secret", func(c *Config) { c.StripeWebhookSecret = "" }, "STRIPE_WEBHOOK_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateDevelopmentJWTWithoutFirebase(t *testing.T) {
	cfg := &Config{
		AppEnv:          EnvDevelopment,
		DatabaseDriver:  DriverMemory,
		AuthProvider:    AuthJWT,
		AuthJWTSecret:   "dev-secret",
		EncryptionKey:   testKey,
		StripeSecretKey: "sk_test",
	}
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.NeedsFirebase())
}

func TestWebhookBypassEnabled(t *testing.T) {
	dev := &Config{AppEnv: EnvDevelopment}
	assert.True(t, dev.WebhookBypassEnabled())

	dev.StripeWebhookSecret = "whsec_your_webhook_secret"
	assert.True(t, dev.WebhookBypassEnabled())

	dev.StripeWebhookSecret = "whsec_real"
	assert.False(t, dev.WebhookBypassEnabled())

	prod := &Config{AppEnv: EnvProduction}
	assert.False(t, prod.WebhookBypassEnabled())
}
