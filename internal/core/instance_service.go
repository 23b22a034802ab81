package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/crypto"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/metrics"
	"o3-ttgifts-backend/internal/models"
)

type instanceService struct {
	instanceRepo db.InstanceRepository
	dataRepo     db.InstanceDataRepository
	accountRepo  db.AccountRepository
	sealer       *crypto.Sealer
	auditService AuditService
	logger       *zap.Logger
	now          clock
}

// NewInstanceService creates an InstanceService. sealer protects API keys at rest.
func NewInstanceService(
	instanceRepo db.InstanceRepository,
	dataRepo db.InstanceDataRepository,
	accountRepo db.AccountRepository,
	sealer *crypto.Sealer,
	as AuditService,
	logger *zap.Logger,
) InstanceService {
	return &instanceService{
		instanceRepo: instanceRepo,
		dataRepo:     dataRepo,
		accountRepo:  accountRepo,
		sealer:       sealer,
		auditService: as,
		logger:       logger,
		now:          systemClock,
	}
}

var errInvalidInstanceCredentials = &Error{Kind: ErrUnauthorized, Message: "Invalid API key or Account ID"}

// Authenticate checks apiKey against the active instance of accountID.
func (s *instanceService) Authenticate(ctx context.Context, apiKey, accountID string) (*models.TrackerInstance, error) {
	if apiKey == "" {
		return nil, &Error{Kind: ErrUnauthorized, Message: "API key is required. Please provide X-API-Key header."}
	}
	if accountID == "" {
		return nil, &Error{Kind: ErrUnauthorized, Message: "Account ID is required. Please provide X-Account-ID header."}
	}

	instance, err := s.instanceRepo.GetByAccountID(ctx, accountID)
	if err != nil && !db.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}
	if instance == nil || instance.Status != models.InstanceActive || !crypto.APIKeyMatches(apiKey, instance.APIKeyHash) {
		metrics.InstanceAuthFailuresTotal.Inc()
		s.logger.Warn("Instance authentication failed",
			zap.String("account_id", accountID),
			zap.String("api_key_prefix", crypto.KeyPrefix(apiKey)))
		return nil, errInvalidInstanceCredentials
	}

	now := s.now()
	if _, err := s.instanceRepo.Update(ctx, accountID, func(i *models.TrackerInstance) error {
		i.LastAccessedAt = &now
		return nil
	}); err != nil {
		s.logger.Error("Failed to update lastAccessedAt", zap.String("account_id", accountID), zap.Error(err))
	}
	return instance, nil
}

func (s *instanceService) loadOrCreate(ctx context.Context, accountID string, def models.InstanceDocument) (models.InstanceDocument, error) {
	data, err := s.dataRepo.FindOrCreate(ctx, accountID, def)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", def.DataType(), err)
	}
	return data.Decode()
}

func (s *instanceService) GiftGroups(ctx context.Context, accountID string) (models.GiftGroups, error) {
	doc, err := s.loadOrCreate(ctx, accountID, models.GiftGroups{})
	if err != nil {
		return nil, err
	}
	return doc.(models.GiftGroups), nil
}

// SaveGiftGroups replaces the stored groups and mirrors their count onto the account.
func (s *instanceService) SaveGiftGroups(ctx context.Context, accountID string, raw []byte) (models.GiftGroups, error) {
	groups, err := models.ParseGiftGroups(raw)
	if err != nil {
		return nil, &Error{Kind: ErrValidation, Message: "Invalid groups data format", Err: err}
	}
	if _, err := s.dataRepo.Upsert(ctx, accountID, groups); err != nil {
		return nil, fmt.Errorf("failed to save gift groups: %w", err)
	}

	if _, err := s.accountRepo.Update(ctx, accountID, func(a *models.TikTokAccount) error {
		a.GiftGroupsCount = len(groups)
		return nil
	}); err != nil {
		s.logger.Warn("Failed to update gift group count", zap.String("account_id", accountID), zap.Error(err))
	}
	s.logger.Info("Saved gift groups", zap.String("account_id", accountID), zap.Int("group_count", len(groups)))
	return groups, nil
}

func (s *instanceService) Config(ctx context.Context, accountID string) (models.InstanceConfig, error) {
	doc, err := s.loadOrCreate(ctx, accountID, models.DefaultInstanceConfig())
	if err != nil {
		return nil, err
	}
	return doc.(models.InstanceConfig), nil
}

func (s *instanceService) MergeConfig(ctx context.Context, accountID string, raw []byte) (models.InstanceConfig, error) {
	patch, err := models.ParseInstanceConfig(raw)
	if err != nil {
		return nil, &Error{Kind: ErrValidation, Message: "Invalid config data format", Err: err}
	}
	current, err := s.Config(ctx, accountID)
	if err != nil {
		return nil, err
	}
	merged := current.Merge(patch)
	if _, err := s.dataRepo.Upsert(ctx, accountID, merged); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	return merged, nil
}

func (s *instanceService) Analytics(ctx context.Context, accountID string) (models.AnalyticsSnapshot, error) {
	data, err := s.dataRepo.Get(ctx, accountID, models.DataAnalytics)
	if err != nil {
		if db.IsNotFound(err) {
			return models.AnalyticsSnapshot{}, nil
		}
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}
	doc, err := data.Decode()
	if err != nil {
		return nil, err
	}
	return doc.(models.AnalyticsSnapshot), nil
}

func (s *instanceService) SaveAnalytics(ctx context.Context, accountID string, raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if !json.Valid([]byte(trimmed)) || !strings.HasPrefix(trimmed, "{") {
		return validationError("Invalid analytics data format")
	}
	if _, err := s.dataRepo.Upsert(ctx, accountID, models.AnalyticsSnapshot(trimmed)); err != nil {
		return fmt.Errorf("failed to save analytics: %w", err)
	}
	return nil
}

func (s *instanceService) credentials(instance *models.TrackerInstance) (*InstanceCredentials, error) {
	apiKey, err := s.sealer.Open(instance.APIKeyCiphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt API key for account %s: %w", instance.AccountID, err)
	}
	return &InstanceCredentials{Instance: instance, APIKey: apiKey}, nil
}

func (s *instanceService) Lookup(ctx context.Context, accountID string) (*InstanceCredentials, error) {
	instance, err := s.instanceRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}
	return s.credentials(instance)
}

// sealKey returns the hash and ciphertext stored for a new key.
func (s *instanceService) sealKey(apiKey string) (hash, sealed string, err error) {
	sealed, err = s.sealer.Seal(apiKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to seal API key: %w", err)
	}
	return crypto.HashAPIKey(apiKey), sealed, nil
}

func (s *instanceService) GenerateKey(ctx context.Context, actor Actor, accountID string) (*InstanceCredentials, error) {
	if accountID == "" {
		return nil, validationError("Account ID is required")
	}
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	apiKey := crypto.GenerateAPIKey()
	hash, sealed, err := s.sealKey(apiKey)
	if err != nil {
		return nil, err
	}
	now := s.now()
	instance := &models.TrackerInstance{
		AccountID:        account.ID,
		UserID:           account.UserID,
		APIKeyHash:       hash,
		APIKeyCiphertext: sealed,
		APIKeyPrefix:     crypto.KeyPrefix(apiKey),
		Status:           models.InstanceActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.instanceRepo.Create(ctx, instance); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, conflictError("API key already exists for this account. Use regenerate endpoint.")
		}
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	s.logger.Info("Generated instance API key",
		zap.String("account_id", account.ID),
		zap.String("api_key_prefix", instance.APIKeyPrefix))
	s.auditService.Record(ctx, actor, models.ActionInstanceKeyGenerate, models.TargetInstance, account.ID, nil)
	return &InstanceCredentials{Instance: instance, APIKey: apiKey}, nil
}

// RegenerateKey replaces the key; the previous key stops working immediately.
func (s *instanceService) RegenerateKey(ctx context.Context, actor Actor, accountID string) (*InstanceCredentials, error) {
	if accountID == "" {
		return nil, validationError("Account ID is required")
	}
	apiKey := crypto.GenerateAPIKey()
	hash, sealed, err := s.sealKey(apiKey)
	if err != nil {
		return nil, err
	}
	instance, err := s.instanceRepo.Update(ctx, accountID, func(i *models.TrackerInstance) error {
		i.APIKeyHash = hash
		i.APIKeyCiphertext = sealed
		i.APIKeyPrefix = crypto.KeyPrefix(apiKey)
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("No API key found for this account. Use generate endpoint.")
		}
		return nil, fmt.Errorf("failed to regenerate API key: %w", err)
	}

	s.logger.Info("Regenerated instance API key",
		zap.String("account_id", accountID),
		zap.String("api_key_prefix", instance.APIKeyPrefix))
	s.auditService.Record(ctx, actor, models.ActionInstanceKeyRegenerate, models.TargetInstance, accountID, nil)
	return &InstanceCredentials{Instance: instance, APIKey: apiKey}, nil
}

func (s *instanceService) UpdateURL(ctx context.Context, actor Actor, accountID, instanceURL string) (*models.TrackerInstance, error) {
	instanceURL = strings.TrimSpace(instanceURL)
	if instanceURL == "" {
		return nil, validationError("Instance URL is required")
	}
	instance, err := s.instanceRepo.Update(ctx, accountID, func(i *models.TrackerInstance) error {
		i.InstanceURL = instanceURL
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("No instance found for this account")
		}
		return nil, fmt.Errorf("failed to update instance URL: %w", err)
	}
	s.auditService.Record(ctx, actor, models.ActionInstanceURLUpdate, models.TargetInstance, accountID,
		map[string]string{"instance_url": instanceURL})
	return instance, nil
}

func (s *instanceService) Disconnect(ctx context.Context, actor Actor, accountID string) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return errAccountNotFound
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	if err := s.instanceRepo.Delete(ctx, accountID); err != nil && !db.IsNotFound(err) {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	if err := s.dataRepo.DeleteForAccount(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete instance data: %w", err)
	}
	if err := s.accountRepo.Delete(ctx, accountID); err != nil && !db.IsNotFound(err) {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	s.logger.Info("Disconnected and deleted account",
		zap.String("account_id", accountID),
		zap.String("external_id", account.AccountID))
	s.auditService.Record(ctx, actor, models.ActionAccountDisconnect, models.TargetAccount, accountID,
		map[string]string{"account_name": account.AccountName})
	return nil
}
