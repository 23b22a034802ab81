package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/billing"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/metrics"
	"o3-ttgifts-backend/internal/models"
)

// reconciliationService implements the ReconciliationService interface.
type reconciliationService struct {
	subRepo       db.SubscriptionRepository
	paymentRepo   db.PaymentRepository
	couponService CouponService
	engine        billing.Engine
	logger        *zap.Logger
	now           clock
}

// NewReconciliationService creates a ReconciliationService.
func NewReconciliationService(
	subRepo db.SubscriptionRepository,
	paymentRepo db.PaymentRepository,
	cs CouponService,
	engine billing.Engine,
	logger *zap.Logger,
) ReconciliationService {
	return &reconciliationService{
		subRepo:       subRepo,
		paymentRepo:   paymentRepo,
		couponService: cs,
		engine:        engine,
		logger:        logger,
		now:           systemClock,
	}
}

// paymentID keys ledger rows by the event that produced them, so a redelivered
// event cannot append a second row.
func paymentID(eventID string) string {
	return "evt_" + eventID
}

func (s *reconciliationService) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	event, err := s.engine.ParseEvent(payload, signature)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		s.logger.Warn("Webhook rejected", zap.Error(err))
		if errors.Is(err, billing.ErrInvalidSignature) {
			return "", &Error{Kind: ErrValidation, Message: "Webhook Error: signature verification failed", Err: err}
		}
		return "", &Error{Kind: ErrValidation, Message: "Webhook Error: malformed event", Err: err}
	}
	return s.Apply(ctx, event)
}

// Apply dispatches one verified event. Only store failures are returned as
// errors; events that match nothing are acknowledged.
func (s *reconciliationService) Apply(ctx context.Context, event billing.Event) (Outcome, error) {
	var (
		outcome Outcome
		err     error
	)
	switch e := event.(type) {
	case billing.CheckoutCompleted:
		outcome, err = s.checkoutCompleted(ctx, e)
	case billing.SubscriptionUpdated:
		outcome, err = s.subscriptionUpdated(ctx, e)
	case billing.SubscriptionDeleted:
		outcome, err = s.subscriptionDeleted(ctx, e)
	case billing.InvoicePaymentSucceeded:
		outcome, err = s.invoicePayment(ctx, e.EventID(), e.InvoicePayment, models.PaymentSucceeded)
	case billing.InvoicePaymentFailed:
		outcome, err = s.invoicePayment(ctx, e.EventID(), e.InvoicePayment, models.PaymentFailed)
	case billing.Ignored:
		outcome = OutcomeIgnored
	default:
		err = fmt.Errorf("unsupported event variant %T", event)
	}

	fields := []zap.Field{
		zap.String("event_id", event.EventID()),
		zap.String("type", event.EventType()),
	}
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.EventType(), "error").Inc()
		s.logger.Error("Webhook event processing failed", append(fields, zap.Error(err))...)
		return "", err
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.EventType(), string(outcome)).Inc()
	if outcome == OutcomeIgnored {
		s.logger.Debug("Unhandled webhook event type", fields...)
	} else {
		s.logger.Info("Webhook event processed", append(fields, zap.String("outcome", string(outcome)))...)
	}
	return outcome, nil
}

func (s *reconciliationService) checkoutCompleted(ctx context.Context, e billing.CheckoutCompleted) (Outcome, error) {
	userID := e.Metadata["userId"]
	plan := e.Metadata["plan"]
	if userID == "" || plan == "" || e.CustomerID == "" {
		s.logger.Warn("Checkout session is missing correlation metadata",
			zap.String("session_id", e.SessionID),
			zap.String("user_id", userID),
			zap.String("plan", plan))
		return OutcomeUncorrelated, nil
	}

	// A redelivered checkout must not touch the subscription again: it may
	// have been canceled since the first delivery.
	seen, err := s.paymentRepo.Exists(ctx, paymentID(e.EventID()))
	if err != nil {
		return "", err
	}
	if seen {
		return OutcomeDuplicate, nil
	}

	candidates, err := s.subRepo.ListByUserAndCustomer(ctx, userID, e.CustomerID)
	if err != nil {
		return "", fmt.Errorf("failed to find subscription for checkout: %w", err)
	}
	target := pickCheckoutSubscription(candidates, e.SubscriptionID)
	if target == nil {
		s.logger.Warn("No subscription found for checkout session",
			zap.String("session_id", e.SessionID),
			zap.String("user_id", userID),
			zap.String("customer_id", e.CustomerID))
		return OutcomeUncorrelated, nil
	}

	sub, err := s.subRepo.Update(ctx, target.ID, func(sub *models.Subscription) error {
		if e.SubscriptionID != "" {
			sub.StripeSubscriptionID = e.SubscriptionID
		}
		sub.Status = models.StatusActive
		sub.DeploymentFeePaid = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to activate subscription %s: %w", target.ID, err)
	}

	couponCode := e.Metadata["couponCode"]
	if couponCode == "" {
		couponCode = sub.CouponCode
	}
	amount := models.DeploymentFee
	description := "One-time deployment fee"
	if couponCode != "" {
		amount = 0
		description = fmt.Sprintf("Deployment fee waived (coupon %s)", normalizeCode(couponCode))
		s.redeemCoupon(ctx, couponCode, userID, sub.ID)
	}

	err = s.paymentRepo.Create(ctx, &models.Payment{
		ID:                    paymentID(e.EventID()),
		UserID:                userID,
		SubscriptionID:        sub.ID,
		StripeEventID:         e.EventID(),
		StripePaymentIntentID: e.PaymentIntentID,
		Type:                  models.PaymentTypeDeploymentFee,
		Amount:                amount,
		Currency:              models.Currency,
		Status:                models.PaymentSucceeded,
		Description:           description,
		CreatedAt:             s.now(),
	})
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("failed to record deployment fee: %w", err)
	}
	return OutcomeApplied, nil
}

// redeemCoupon records the use of a coupon that already waived the fee at
// checkout. The fee stays waived even when the redemption is refused.
func (s *reconciliationService) redeemCoupon(ctx context.Context, code, userID, subscriptionID string) {
	_, err := s.couponService.Redeem(ctx, code, userID, subscriptionID)
	switch {
	case err == nil:
	case errors.Is(err, ErrCouponAlreadyUsed):
		s.logger.Info("Coupon already redeemed by user", zap.String("code", code), zap.String("user_id", userID))
	default:
		s.logger.Warn("Coupon redemption failed after checkout",
			zap.String("code", code),
			zap.String("user_id", userID),
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
	}
}

// pickCheckoutSubscription prefers the row already bound to the provider
// subscription, then the newest incomplete row, then the newest row.
// candidates are ordered newest first.
func pickCheckoutSubscription(candidates []*models.Subscription, stripeSubscriptionID string) *models.Subscription {
	if len(candidates) == 0 {
		return nil
	}
	if stripeSubscriptionID != "" {
		for _, c := range candidates {
			if c.StripeSubscriptionID == stripeSubscriptionID {
				return c
			}
		}
	}
	for _, c := range candidates {
		if c.Status == models.StatusIncomplete {
			return c
		}
	}
	return candidates[0]
}

func (s *reconciliationService) findByStripeSubscription(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, nil
	}
	sub, err := s.subRepo.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (s *reconciliationService) subscriptionUpdated(ctx context.Context, e billing.SubscriptionUpdated) (Outcome, error) {
	sub, err := s.findByStripeSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return OutcomeUncorrelated, nil
	}

	status, known := models.ParseSubscriptionStatus(e.Status)
	if !known {
		s.logger.Warn("Unknown subscription status from billing provider",
			zap.String("subscription_id", e.SubscriptionID),
			zap.String("status", e.Status))
	}
	_, err = s.subRepo.Update(ctx, sub.ID, func(sub *models.Subscription) error {
		if known {
			sub.Status = status
		}
		if e.CurrentPeriodStart != nil {
			sub.CurrentPeriodStart = e.CurrentPeriodStart
		}
		if e.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = e.CurrentPeriodEnd
		}
		sub.CancelAtPeriodEnd = e.CancelAtPeriodEnd
		if e.CanceledAt != nil {
			sub.CanceledAt = e.CanceledAt
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
	}
	return OutcomeApplied, nil
}

func (s *reconciliationService) subscriptionDeleted(ctx context.Context, e billing.SubscriptionDeleted) (Outcome, error) {
	sub, err := s.findByStripeSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return OutcomeUncorrelated, nil
	}

	now := s.now()
	_, err = s.subRepo.Update(ctx, sub.ID, func(sub *models.Subscription) error {
		sub.Status = models.StatusCanceled
		if sub.CanceledAt == nil {
			sub.CanceledAt = &now
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
	}
	return OutcomeApplied, nil
}

// invoicePayment appends one ledger row and leaves the subscription untouched.
func (s *reconciliationService) invoicePayment(ctx context.Context, eventID string, inv billing.InvoicePayment, status models.PaymentStatus) (Outcome, error) {
	if inv.CustomerID == "" {
		return OutcomeUncorrelated, nil
	}
	sub, err := s.subRepo.FindLatestByCustomer(ctx, inv.CustomerID)
	if err != nil {
		if db.IsNotFound(err) {
			return OutcomeUncorrelated, nil
		}
		return "", err
	}

	amount := inv.AmountPaid
	description := fmt.Sprintf("Monthly subscription payment - %s", sub.Plan)
	if status == models.PaymentFailed {
		amount = inv.AmountDue
		description = fmt.Sprintf("Failed payment - %s", sub.Plan)
	}
	currency := inv.Currency
	if currency == "" {
		currency = models.Currency
	}

	err = s.paymentRepo.Create(ctx, &models.Payment{
		ID:                    paymentID(eventID),
		UserID:                sub.UserID,
		SubscriptionID:        sub.ID,
		StripeEventID:         eventID,
		StripePaymentIntentID: inv.PaymentIntentID,
		StripeInvoiceID:       inv.InvoiceID,
		Type:                  models.PaymentTypeSubscription,
		Amount:                amount,
		Currency:              currency,
		Status:                status,
		Description:           description,
		CreatedAt:             s.now(),
	})
	if err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("failed to record invoice payment: %w", err)
	}
	return OutcomeApplied, nil
}
