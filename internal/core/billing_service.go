package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/billing"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/metrics"
	"o3-ttgifts-backend/internal/models"
)

const (
	deploymentFeeItemName        = "One-Time Deployment Fee"
	deploymentFeeItemDescription = "Setup and deployment of your O3 TT Gifts instance"
	historyLimit                 = 50
)

// checkoutService implements the CheckoutService interface.
type checkoutService struct {
	subRepo       db.SubscriptionRepository
	paymentRepo   db.PaymentRepository
	couponService CouponService
	engine        billing.Engine
	frontendURL   string
	logger        *zap.Logger
	now           clock
}

// NewCheckoutService creates a CheckoutService. frontendURL is the base of the
// success and cancel redirects.
func NewCheckoutService(
	subRepo db.SubscriptionRepository,
	paymentRepo db.PaymentRepository,
	cs CouponService,
	engine billing.Engine,
	frontendURL string,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		subRepo:       subRepo,
		paymentRepo:   paymentRepo,
		couponService: cs,
		engine:        engine,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
		logger:        logger,
		now:           systemClock,
	}
}

// CreateCheckoutSession starts a checkout for the deployment fee plus the
// monthly plan and records an incomplete subscription for the webhook to
// activate later.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, user *models.User, req models.CreateCheckoutSessionRequest) (*billing.CheckoutSession, error) {
	plan, ok := models.LookupPlan(req.Plan)
	if !ok {
		return nil, validationError("Invalid plan selected")
	}
	if req.AccountCount < 0 {
		return nil, validationError("accountCount cannot be negative")
	}
	accounts := req.AccountCount
	if accounts < plan.Accounts {
		accounts = plan.Accounts
	}

	live, err := s.subRepo.ListByUser(ctx, user.ID, models.LiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing subscriptions: %w", err)
	}
	if len(live) > 0 {
		metrics.CheckoutSessionsTotal.WithLabelValues(string(plan.Type), "already_subscribed").Inc()
		return nil, ErrAlreadySubscribed
	}

	var coupon *models.Coupon
	if strings.TrimSpace(req.CouponCode) != "" {
		coupon, err = s.couponService.Validate(ctx, req.CouponCode, user.ID)
		if err != nil {
			metrics.CheckoutSessionsTotal.WithLabelValues(string(plan.Type), "coupon_rejected").Inc()
			return nil, err
		}
	}

	customerID, err := s.resolveCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	var items []billing.LineItem
	if coupon == nil {
		items = append(items, billing.LineItem{
			Name:        deploymentFeeItemName,
			Description: deploymentFeeItemDescription,
			UnitAmount:  models.DeploymentFee,
		})
	}
	items = append(items, billing.LineItem{
		Name:        plan.Name + " Plan",
		Description: fmt.Sprintf("%d TikTok accounts, %d gift groups", accounts, plan.GiftGroups),
		UnitAmount:  plan.MonthlyTotal(accounts),
		Recurring:   true,
	})

	metadata := map[string]string{
		"userId":        user.ID,
		"plan":          string(plan.Type),
		"deploymentFee": "true",
	}
	if coupon != nil {
		metadata["couponCode"] = coupon.Code
	}

	session, err := s.engine.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		CustomerID: customerID,
		Currency:   models.Currency,
		LineItems:  items,
		SuccessURL: s.frontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.frontendURL + "/checkout/cancel",
		Metadata:   metadata,
		SubscriptionMetadata: map[string]string{
			"userId":       user.ID,
			"plan":         string(plan.Type),
			"accountCount": strconv.Itoa(accounts),
		},
	})
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues(string(plan.Type), "provider_error").Inc()
		return nil, billingError("Failed to create checkout session", err)
	}

	now := s.now()
	sub := &models.Subscription{
		UserID:            user.ID,
		StripeCustomerID:  customerID,
		Plan:              plan.Type,
		Status:            models.StatusIncomplete,
		AccountCount:      accounts,
		DeploymentFeePaid: false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if coupon != nil {
		sub.CouponCode = coupon.Code
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to record pending subscription: %w", err)
	}

	metrics.CheckoutSessionsTotal.WithLabelValues(string(plan.Type), "created").Inc()
	s.logger.Info("Checkout session created",
		zap.String("user_id", user.ID),
		zap.String("session_id", session.ID),
		zap.String("plan", string(plan.Type)),
		zap.Int("account_count", accounts),
		zap.Bool("coupon_applied", coupon != nil))
	return session, nil
}

// resolveCustomer reuses the billing customer of any earlier subscription row.
func (s *checkoutService) resolveCustomer(ctx context.Context, user *models.User) (string, error) {
	subs, err := s.subRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to look up billing customer: %w", err)
	}
	for _, sub := range subs {
		if sub.StripeCustomerID != "" {
			return sub.StripeCustomerID, nil
		}
	}

	customerID, err := s.engine.CreateCustomer(ctx, billing.CustomerRequest{
		Email: user.Email,
		Name:  user.DisplayName,
		Metadata: map[string]string{
			"userId":      user.ID,
			"firebaseUid": user.ID,
		},
	})
	if err != nil {
		return "", billingError("Failed to create billing customer", err)
	}
	s.logger.Info("Created billing customer", zap.String("user_id", user.ID), zap.String("customer_id", customerID))
	return customerID, nil
}

func (s *checkoutService) PaymentHistory(ctx context.Context, userID string) ([]*models.Payment, error) {
	payments, err := s.paymentRepo.ListByUser(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// Invoices returns an empty list for users that never reached checkout.
func (s *checkoutService) Invoices(ctx context.Context, userID string) ([]billing.Invoice, error) {
	subs, err := s.subRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up billing customer: %w", err)
	}
	customerID := ""
	for _, sub := range subs {
		if sub.StripeCustomerID != "" {
			customerID = sub.StripeCustomerID
			break
		}
	}
	if customerID == "" {
		return []billing.Invoice{}, nil
	}

	invoices, err := s.engine.ListInvoices(ctx, customerID, historyLimit)
	if err != nil {
		return nil, billingError("Failed to fetch invoices", err)
	}
	return invoices, nil
}
