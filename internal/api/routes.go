package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/config"
	"o3-ttgifts-backend/internal/core"
	"o3-ttgifts-backend/internal/middleware"
)

// Services are the core services the routes dispatch to.
type Services struct {
	Users          core.UserService
	Coupons        core.CouponService
	Checkout       core.CheckoutService
	Reconciliation core.ReconciliationService
	Subscriptions  core.SubscriptionService
	Accounts       core.AccountService
	Instances      core.InstanceService
	Admin          core.AdminService
}

// SetupRoutes configures all the application routes with their handlers and
// middleware. Global middleware (logging, recovery, CORS, metrics) is applied
// by the caller. The returned func stops the rate limiters' cleanup loops.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	verifier auth.Verifier,
	svc Services,
) (stop func()) {
	authMW := middleware.Authenticate(verifier, logger)
	adminMW := middleware.RequireAdmin(svc.Users, logger)
	instanceMW := middleware.InstanceAuth(svc.Instances, logger)

	apiLimit, authLimit, paymentLimit, stop := rateLimits(appConfig.RateLimitEnabled)

	authHandler := NewAuthHandler(verifier, logger)
	userHandler := NewUserHandler(svc.Users, logger)
	billingHandler := NewBillingHandler(svc.Users, svc.Checkout, svc.Reconciliation, logger)
	subscriptionHandler := NewSubscriptionHandler(svc.Users, svc.Subscriptions, logger)
	accountHandler := NewAccountHandler(svc.Users, svc.Accounts, logger)
	couponHandler := NewCouponHandler(svc.Users, svc.Coupons, logger)
	adminHandler := NewAdminHandler(svc.Admin, svc.Instances, logger)
	instanceHandler := NewInstanceHandler(svc.Instances, logger)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth", apiLimit)
		{
			authGroup.GET("/me", authMW, userHandler.GetCurrentUserProfile)
			authGroup.PUT("/profile", authMW, userHandler.UpdateProfile)
			authGroup.POST("/verify-token", authLimit, authHandler.VerifyToken)
			authGroup.DELETE("/account", authMW, userHandler.DeactivateAccount)
		}

		// No API limiter here: the provider must always reach the webhook.
		payments := api.Group("/payments")
		{
			payments.POST("/create-checkout-session", paymentLimit, authMW, billingHandler.CreateCheckoutSession)
			payments.POST("/webhook", billingHandler.HandleStripeWebhook)
			payments.GET("/history", authMW, billingHandler.PaymentHistory)
			payments.GET("/invoices", authMW, billingHandler.Invoices)
		}

		subscriptions := api.Group("/subscriptions", apiLimit)
		{
			subscriptions.GET("/plans", subscriptionHandler.Plans)
			subscriptions.GET("/current", authMW, subscriptionHandler.Current)
			subscriptions.GET("/usage", authMW, subscriptionHandler.Usage)
			subscriptions.POST("/cancel", authMW, subscriptionHandler.Cancel)
			subscriptions.POST("/reactivate", authMW, subscriptionHandler.Reactivate)
			subscriptions.POST("/change-plan", authMW, subscriptionHandler.ChangePlan)
		}

		accounts := api.Group("/accounts", apiLimit, authMW)
		{
			accounts.GET("", accountHandler.ListAccounts)
			accounts.POST("", accountHandler.CreateAccount)
			accounts.GET("/:id", accountHandler.GetAccount)
			accounts.PUT("/:id", accountHandler.UpdateAccount)
			accounts.DELETE("/:id", accountHandler.DeleteAccount)
			accounts.POST("/:id/sync", accountHandler.SyncAccount)
		}

		coupons := api.Group("/coupons", apiLimit, authMW)
		{
			coupons.POST("/validate", couponHandler.ValidateCoupon)

			couponAdmin := coupons.Group("", adminMW)
			couponAdmin.GET("", couponHandler.ListCoupons)
			couponAdmin.POST("", couponHandler.CreateCoupon)
			couponAdmin.GET("/stats/summary", couponHandler.CouponStats)
			couponAdmin.GET("/:id", couponHandler.GetCoupon)
			couponAdmin.PATCH("/:id", couponHandler.UpdateCoupon)
			couponAdmin.DELETE("/:id", couponHandler.DeleteCoupon)
		}

		admin := api.Group("/admin", apiLimit, authMW, adminMW)
		{
			admin.GET("/dashboard", adminHandler.Dashboard)
			admin.GET("/users", adminHandler.ListUsers)
			admin.GET("/users/:id", adminHandler.GetUser)
			admin.PATCH("/users/:id", adminHandler.UpdateUser)
			admin.GET("/accounts", adminHandler.ListAccounts)
			admin.PATCH("/accounts/:id", adminHandler.UpdateAccount)
			admin.POST("/accounts/:id/disconnect", adminHandler.DisconnectAccount)
			admin.DELETE("/accounts/:id", adminHandler.DeleteAccount)
			admin.GET("/analytics", adminHandler.Analytics)
			admin.GET("/recent-activity", adminHandler.RecentActivity)
			admin.GET("/instances/:accountId", adminHandler.GetInstance)
			admin.POST("/instances/generate-key", adminHandler.GenerateInstanceKey)
			admin.POST("/instances/regenerate-key", adminHandler.RegenerateInstanceKey)
			admin.PATCH("/instances/:accountId/url", adminHandler.UpdateInstanceURL)
		}

		instances := api.Group("/instances/:accountId", instanceMW)
		{
			instances.GET("/gift-groups", instanceHandler.GetGiftGroups)
			instances.POST("/gift-groups", instanceHandler.SaveGiftGroups)
			instances.GET("/config", instanceHandler.GetConfig)
			instances.POST("/config", instanceHandler.SaveConfig)
			instances.GET("/analytics", instanceHandler.GetAnalytics)
			instances.POST("/analytics", instanceHandler.SaveAnalytics)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Success:     true,
			Message:     "O3 TT Gifts API is running",
			Timestamp:   time.Now().UTC(),
			Environment: appConfig.AppEnv,
		})
	})

	if appConfig.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		middleware.AbortWithMessage(c, http.StatusNotFound, "Route not found")
	})

	logger.Info("API routes configured",
		zap.Bool("rate_limit", appConfig.RateLimitEnabled),
		zap.Bool("metrics", appConfig.MetricsEnabled))
	return stop
}

// rateLimits builds the three limiter tiers, or pass-through handlers when
// rate limiting is disabled.
func rateLimits(enabled bool) (apiLimit, authLimit, paymentLimit gin.HandlerFunc, stop func()) {
	if !enabled {
		pass := func(c *gin.Context) { c.Next() }
		return pass, pass, pass, func() {}
	}
	apiRL := middleware.NewRateLimiter(middleware.APIRateLimit)
	authRL := middleware.NewRateLimiter(middleware.AuthRateLimit)
	paymentRL := middleware.NewRateLimiter(middleware.PaymentRateLimit)
	stop = func() {
		apiRL.Stop()
		authRL.Stop()
		paymentRL.Stop()
	}
	return apiRL.Middleware(), authRL.Middleware(), paymentRL.Middleware(), stop
}
