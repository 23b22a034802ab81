package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/api"
	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/billing"
	"o3-ttgifts-backend/internal/config"
	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/crypto"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/middleware"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newVerifier(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.Logger) (auth.Verifier, error) {
	switch cfg.AuthProvider {
	case config.AuthJWT:
		logger.Warn("Using development JWT authentication; never enable this in production")
		return auth.NewJWTVerifier(cfg.AuthJWTSecret)
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.Auth: %w", err)
		}
		return auth.NewFirebaseVerifier(client), nil
	}
	return nil, fmt.Errorf("unsupported auth provider %q", cfg.AuthProvider)
}

func main() {
	// --- 1. Load configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load application configuration: %v", err)
	}

	// --- 2. Logger ---
	logger, err := newLogger(appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Configuration loaded",
		zap.String("env", appConfig.AppEnv),
		zap.String("database_driver", appConfig.DatabaseDriver),
		zap.String("auth_provider", appConfig.AuthProvider))

	// --- 3. Firebase, store and verifier ---
	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	var app *firebase.App
	if appConfig.NeedsFirebase() {
		app, err = db.InitFirebase(initCtx, appConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
	}

	store, err := db.OpenStore(initCtx, appConfig, app, logger)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close document store", zap.Error(err))
		}
	}()

	verifier, err := newVerifier(initCtx, appConfig, app, logger)
	if err != nil {
		logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	key, err := appConfig.EncryptionKeyBytes()
	if err != nil {
		logger.Fatal("Invalid encryption key", zap.Error(err))
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		logger.Fatal("Failed to initialize API key sealer", zap.Error(err))
	}

	if appConfig.WebhookBypassEnabled() {
		logger.Warn("Stripe webhook signature verification is DISABLED (development only)")
	}
	engine := billing.NewStripeEngine(appConfig.StripeSecretKey, appConfig.StripeWebhookSecret, appConfig.WebhookBypassEnabled(), logger)

	// --- 4. Repositories ---
	userRepo := db.NewUserRepository(store)
	subRepo := db.NewSubscriptionRepository(store)
	paymentRepo := db.NewPaymentRepository(store)
	accountRepo := db.NewAccountRepository(store)
	couponRepo := db.NewCouponRepository(store)
	auditRepo := db.NewAuditRepository(store)

	// --- 5. Services ---
	auditService := core.NewAuditService(auditRepo, logger)
	userService := core.NewUserService(userRepo, logger)
	couponService := core.NewCouponService(couponRepo, auditService, logger)
	services := api.Services{
		Users:          userService,
		Coupons:        couponService,
		Checkout:       core.NewCheckoutService(subRepo, paymentRepo, couponService, engine, appConfig.FrontendURL, logger),
		Reconciliation: core.NewReconciliationService(subRepo, paymentRepo, couponService, engine, logger),
		Subscriptions:  core.NewSubscriptionService(subRepo, accountRepo, engine, logger),
		Accounts:       core.NewAccountService(accountRepo, subRepo, logger),
		Instances: core.NewInstanceService(db.NewInstanceRepository(store), db.NewInstanceDataRepository(store),
			accountRepo, sealer, auditService, logger),
		Admin: core.NewAdminService(userRepo, subRepo, accountRepo, paymentRepo, auditService, logger),
	}

	// --- 6. Gin engine and global middleware ---
	if strings.ToLower(appConfig.GinMode) == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORSMiddleware(appConfig.AllowedOrigins()))
	if appConfig.MetricsEnabled {
		router.Use(middleware.Metrics())
	}

	stopLimiters := api.SetupRoutes(router, appConfig, logger, verifier, services)
	defer stopLimiters()

	// --- 7. HTTP server with graceful shutdown ---
	httpServer := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("gin_mode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("Server exited gracefully")
}
