package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
)

type accountService struct {
	accountRepo db.AccountRepository
	subRepo     db.SubscriptionRepository
	logger      *zap.Logger
	now         clock
}

// NewAccountService creates an AccountService.
func NewAccountService(accountRepo db.AccountRepository, subRepo db.SubscriptionRepository, logger *zap.Logger) AccountService {
	return &accountService{
		accountRepo: accountRepo,
		subRepo:     subRepo,
		logger:      logger,
		now:         systemClock,
	}
}

var errAccountNotFound = notFoundError("Account not found")

func (s *accountService) List(ctx context.Context, userID string) ([]*models.TikTokAccount, error) {
	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Create enforces the plan quota: active accounts must stay below the
// governing plan's account allowance.
func (s *accountService) Create(ctx context.Context, userID string, req models.CreateAccountRequest) (*models.TikTokAccount, error) {
	name := strings.TrimSpace(req.AccountName)
	if name == "" {
		return nil, validationError("Account name is required")
	}

	sub, err := governingSubscription(ctx, s.subRepo, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoGoverningSubscription
	}
	plan, ok := models.LookupPlan(sub.Plan)
	if !ok {
		return nil, fmt.Errorf("subscription %s has unknown plan %q", sub.ID, sub.Plan)
	}
	active, err := s.accountRepo.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	if active >= int64(plan.Accounts) {
		return nil, &Error{
			Kind:    ErrForbidden,
			Message: fmt.Sprintf("Account limit reached. Your %s plan allows %d accounts. Please upgrade your plan.", plan.Name, plan.Accounts),
			Err:     ErrAccountQuotaReached,
		}
	}

	externalID := strings.TrimSpace(req.AccountID)
	if err := s.ensureExternalIDFree(ctx, externalID, ""); err != nil {
		return nil, err
	}

	now := s.now()
	account := &models.TikTokAccount{
		UserID:        userID,
		AccountName:   name,
		AccountHandle: strings.TrimSpace(req.AccountHandle),
		AccountID:     externalID,
		Status:        models.AccountActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, conflictError("An account with this TikTok ID already exists")
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	s.logger.Info("TikTok account added",
		zap.String("user_id", userID),
		zap.String("account_id", account.ID),
		zap.String("account_name", account.AccountName))
	return account, nil
}

// ensureExternalIDFree rejects an external ID already used by another account.
func (s *accountService) ensureExternalIDFree(ctx context.Context, externalID, selfID string) error {
	if externalID == "" {
		return nil
	}
	existing, err := s.accountRepo.FindByExternalID(ctx, externalID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to check TikTok ID: %w", err)
	}
	if existing.ID != selfID {
		return conflictError("An account with this TikTok ID already exists")
	}
	return nil
}

// Get only returns accounts owned by userID; others read as missing.
func (s *accountService) Get(ctx context.Context, userID, accountID string) (*models.TikTokAccount, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account.UserID != userID {
		return nil, errAccountNotFound
	}
	return account, nil
}

func (s *accountService) update(ctx context.Context, userID, accountID string, mutate func(*models.TikTokAccount) error) (*models.TikTokAccount, error) {
	account, err := s.accountRepo.Update(ctx, accountID, func(a *models.TikTokAccount) error {
		if a.UserID != userID {
			return errAccountNotFound
		}
		return mutate(a)
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errAccountNotFound
		}
		var ce *Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update account %s: %w", accountID, err)
	}
	return account, nil
}

func (s *accountService) Update(ctx context.Context, userID, accountID string, req models.UpdateAccountRequest) (*models.TikTokAccount, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, validationError("Invalid account status")
	}
	if req.AccountName != nil && strings.TrimSpace(*req.AccountName) == "" {
		return nil, validationError("Account name cannot be empty")
	}
	if req.AccountID != nil {
		if err := s.ensureExternalIDFree(ctx, strings.TrimSpace(*req.AccountID), accountID); err != nil {
			return nil, err
		}
	}

	return s.update(ctx, userID, accountID, func(a *models.TikTokAccount) error {
		if req.AccountName != nil {
			a.AccountName = strings.TrimSpace(*req.AccountName)
		}
		if req.AccountHandle != nil {
			a.AccountHandle = strings.TrimSpace(*req.AccountHandle)
		}
		if req.AccountID != nil {
			a.AccountID = strings.TrimSpace(*req.AccountID)
		}
		if req.Status != nil {
			a.Status = *req.Status
		}
		return nil
	})
}

func (s *accountService) Delete(ctx context.Context, userID, accountID string) error {
	now := s.now()
	account, err := s.update(ctx, userID, accountID, func(a *models.TikTokAccount) error {
		a.Status = models.AccountInactive
		a.DisconnectionRequested = true
		a.DisconnectionRequestedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("TikTok account disconnection requested",
		zap.String("user_id", userID),
		zap.String("account_id", account.ID),
		zap.String("account_name", account.AccountName))
	return nil
}

// Sync only stamps lastSyncedAt; the instance pulls its own data.
func (s *accountService) Sync(ctx context.Context, userID, accountID string) (*models.TikTokAccount, error) {
	now := s.now()
	return s.update(ctx, userID, accountID, func(a *models.TikTokAccount) error {
		a.LastSyncedAt = &now
		return nil
	})
}
