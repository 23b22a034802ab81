package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported values for the selector keys.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
	DriverMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"

	// placeholderWebhookSecret is the value shipped in example env files.
	placeholderWebhookSecret = "whsec_your_webhook_secret"
)

// Config holds all configuration for the application.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	AppEnv                           string `mapstructure:"APP_ENV"`
	DatabaseDriver                   string `mapstructure:"DATABASE_DRIVER"`
	MongoURI                         string `mapstructure:"MONGODB_URI"`
	MongoDatabase                    string `mapstructure:"MONGODB_DATABASE"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	AuthProvider                     string `mapstructure:"AUTH_PROVIDER"`
	AuthJWTSecret                    string `mapstructure:"AUTH_JWT_SECRET"`
	EncryptionKey                    string `mapstructure:"ENCRYPTION_KEY"` // Base64 encoded, 32 bytes
	StripeSecretKey                  string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret              string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	FrontendURL                      string `mapstructure:"FRONTEND_URL"`
	CORSAllowedOrigins               string `mapstructure:"CORS_ALLOWED_ORIGINS"` // Comma separated
	RateLimitEnabled                 bool   `mapstructure:"RATE_LIMIT_ENABLED"`
	MetricsEnabled                   bool   `mapstructure:"METRICS_ENABLED"`
}

var defaults = map[string]interface{}{
	"PORT":                 "3001",
	"GIN_MODE":             "debug",
	"APP_ENV":              EnvDevelopment,
	"DATABASE_DRIVER":      DriverFirestore,
	"MONGODB_DATABASE":     "o3_ttgifts",
	"AUTH_PROVIDER":        AuthFirebase,
	"FRONTEND_URL":         "http://localhost:5173",
	"CORS_ALLOWED_ORIGINS": "https://o3-ttgifts.com,https://admin.o3-ttgifts.com,http://localhost:5173,http://localhost:5174",
	"RATE_LIMIT_ENABLED":   true,
	"METRICS_ENABLED":      true,
}

var keys = []string{
	"PORT", "GIN_MODE", "APP_ENV", "DATABASE_DRIVER", "MONGODB_URI", "MONGODB_DATABASE",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"AUTH_PROVIDER", "AUTH_JWT_SECRET", "ENCRYPTION_KEY", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET",
	"FRONTEND_URL", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_ENABLED", "METRICS_ENABLED",
}

// LoadConfig reads an optional .env file, then the environment, and validates the result.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.AuthProvider = strings.ToLower(strings.TrimSpace(cfg.AuthProvider))
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &cfg, nil
}

// Validate checks that every setting the selected backends need is present.
func (c *Config) Validate() error {
	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.AppEnv)
	}

	if c.EncryptionKey == "" {
		return errors.New("ENCRYPTION_KEY is required")
	}
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}

	switch c.DatabaseDriver {
	case DriverFirestore, DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required when DATABASE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	switch c.AuthProvider {
	case AuthFirebase:
	case AuthJWT:
		if c.AppEnv != EnvDevelopment {
			return errors.New("AUTH_PROVIDER=jwt is only allowed when APP_ENV=development")
		}
		if c.AuthJWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
	default:
		return fmt.Errorf("unsupported AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.NeedsFirebase() && c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required for Firestore or Firebase authentication")
	}

	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" && !c.WebhookBypassEnabled() {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	return nil
}

// NeedsFirebase reports whether a Firebase app has to be initialized.
func (c *Config) NeedsFirebase() bool {
	return c.DatabaseDriver == DriverFirestore || c.AuthProvider == AuthFirebase
}

// IsDevelopment reports whether APP_ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// WebhookBypassEnabled reports whether webhook signatures may be skipped.
// Only a development environment without a real webhook secret qualifies.
func (c *Config) WebhookBypassEnabled() bool {
	return c.IsDevelopment() && (c.StripeWebhookSecret == "" || c.StripeWebhookSecret == placeholderWebhookSecret)
}

// EncryptionKeyBytes decodes ENCRYPTION_KEY.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS. FRONTEND_URL is always allowed.
func (c *Config) AllowedOrigins() []string {
	seen := map[string]bool{}
	var out []string
	add := func(origin string) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || seen[origin] {
			return
		}
		seen[origin] = true
		out = append(out, origin)
	}
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		add(o)
	}
	add(c.FrontendURL)
	return out
}
