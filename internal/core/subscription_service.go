package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/billing"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
)

type subscriptionService struct {
	subRepo     db.SubscriptionRepository
	accountRepo db.AccountRepository
	engine      billing.Engine
	logger      *zap.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(subRepo db.SubscriptionRepository, accountRepo db.AccountRepository, engine billing.Engine, logger *zap.Logger) SubscriptionService {
	return &subscriptionService{
		subRepo:     subRepo,
		accountRepo: accountRepo,
		engine:      engine,
		logger:      logger,
	}
}

var errNoActiveSubscription = notFoundError("No active subscription found")

// Governing returns the newest subscription in a governing status, or nil.
func (s *subscriptionService) Governing(ctx context.Context, userID string) (*models.Subscription, error) {
	return governingSubscription(ctx, s.subRepo, userID)
}

func governingSubscription(ctx context.Context, subRepo db.SubscriptionRepository, userID string) (*models.Subscription, error) {
	subs, err := subRepo.ListByUser(ctx, userID, models.GoverningStatuses...)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions for %s: %w", userID, err)
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return subs[0], nil
}

// live returns the newest active or trialing subscription.
func (s *subscriptionService) live(ctx context.Context, userID string) (*models.Subscription, error) {
	subs, err := s.subRepo.ListByUser(ctx, userID, models.LiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions for %s: %w", userID, err)
	}
	if len(subs) == 0 {
		return nil, errNoActiveSubscription
	}
	return subs[0], nil
}

// Current returns nil without error when the user has no governing subscription.
func (s *subscriptionService) Current(ctx context.Context, userID string) (*CurrentSubscription, error) {
	sub, err := s.Governing(ctx, userID)
	if err != nil || sub == nil {
		return nil, err
	}
	plan, ok := models.LookupPlan(sub.Plan)
	if !ok {
		return nil, fmt.Errorf("subscription %s has unknown plan %q", sub.ID, sub.Plan)
	}
	used, err := s.accountRepo.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	return &CurrentSubscription{
		Subscription:  sub,
		Plan:          plan,
		AccountsUsed:  used,
		AccountsLimit: plan.Accounts,
	}, nil
}

func (s *subscriptionService) Usage(ctx context.Context, userID string) (*Usage, error) {
	sub, err := s.live(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, ok := models.LookupPlan(sub.Plan)
	if !ok {
		return nil, fmt.Errorf("subscription %s has unknown plan %q", sub.ID, sub.Plan)
	}

	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	usage := &Usage{
		Plan:            plan.Type,
		AccountsLimit:   plan.Accounts,
		GiftGroupsLimit: plan.GiftGroups,
	}
	for _, a := range accounts {
		if a.Status != models.AccountActive {
			continue
		}
		usage.AccountsUsed++
		usage.GiftGroupsUsed += a.GiftGroupsCount
	}
	return usage, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.live(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, errNoActiveSubscription
	}

	state, err := s.engine.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, true)
	if err != nil {
		return nil, billingError("Failed to cancel subscription", err)
	}
	updated, err := s.subRepo.Update(ctx, sub.ID, func(sub *models.Subscription) error {
		sub.CancelAtPeriodEnd = true
		if state.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = state.CurrentPeriodEnd
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
	}
	s.logger.Info("Subscription set to cancel at period end", zap.String("user_id", userID), zap.String("subscription_id", sub.ID))
	return updated, nil
}

func (s *subscriptionService) Reactivate(ctx context.Context, userID string) (*models.Subscription, error) {
	subs, err := s.subRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions for %s: %w", userID, err)
	}
	var sub *models.Subscription
	for _, candidate := range subs {
		if candidate.CancelAtPeriodEnd && candidate.StripeSubscriptionID != "" {
			sub = candidate
			break
		}
	}
	if sub == nil {
		return nil, notFoundError("No cancelable subscription found")
	}

	if _, err := s.engine.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, false); err != nil {
		return nil, billingError("Failed to reactivate subscription", err)
	}
	updated, err := s.subRepo.Update(ctx, sub.ID, func(sub *models.Subscription) error {
		sub.CancelAtPeriodEnd = false
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
	}
	s.logger.Info("Subscription reactivated", zap.String("user_id", userID), zap.String("subscription_id", sub.ID))
	return updated, nil
}

func (s *subscriptionService) ChangePlan(ctx context.Context, userID string, newPlan models.PlanType) (*models.Subscription, error) {
	plan, ok := models.LookupPlan(newPlan)
	if !ok {
		return nil, validationError("Invalid plan selected")
	}
	sub, err := s.live(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.StripeSubscriptionID == "" {
		return nil, errNoActiveSubscription
	}
	if sub.Plan == plan.Type {
		return nil, validationError("You are already on this plan")
	}

	state, err := s.engine.ChangePlan(ctx, sub.StripeSubscriptionID, billing.PlanChange{
		ProductName:        fmt.Sprintf("O3 TT Gifts - %s Plan", plan.Name),
		ProductDescription: fmt.Sprintf("%d TikTok accounts, %d gift groups", plan.Accounts, plan.GiftGroups),
		MonthlyAmount:      plan.MonthlyPrice,
		Currency:           models.Currency,
	})
	if err != nil {
		return nil, billingError("Failed to change plan", err)
	}

	previous := sub.Plan
	updated, err := s.subRepo.Update(ctx, sub.ID, func(sub *models.Subscription) error {
		sub.Plan = plan.Type
		if state.CurrentPeriodStart != nil {
			sub.CurrentPeriodStart = state.CurrentPeriodStart
		}
		if state.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = state.CurrentPeriodEnd
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
	}
	s.logger.Info("Plan changed",
		zap.String("user_id", userID),
		zap.String("from", string(previous)),
		zap.String("to", string(plan.Type)))
	return updated, nil
}
