package db

import (
	"context"
	"fmt"
	"time"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

type accountRepository struct {
	accounts collection[models.TikTokAccount]
}

// NewAccountRepository creates an AccountRepository over store.
func NewAccountRepository(store database.Store) AccountRepository {
	return &accountRepository{accounts: collection[models.TikTokAccount]{store: store, name: accountsCollection}}
}

func (r *accountRepository) Create(ctx context.Context, account *models.TikTokAccount) error {
	if account.ID == "" {
		account.ID = newID()
	}
	if err := r.accounts.create(ctx, account.ID, account); err != nil {
		return fmt.Errorf("failed to create account '%s': %w", account.AccountName, err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.TikTokAccount, error) {
	account, err := r.accounts.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account '%s': %w", id, err)
	}
	return account, nil
}

func (r *accountRepository) FindByExternalID(ctx context.Context, externalID string) (*models.TikTokAccount, error) {
	account, err := r.accounts.first(ctx, database.Query{
		Filters: []database.Filter{database.Where("accountId", database.OpEqual, externalID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find account with TikTok ID '%s': %w", externalID, err)
	}
	return account, nil
}

func (r *accountRepository) Update(ctx context.Context, id string, mutate func(*models.TikTokAccount) error) (*models.TikTokAccount, error) {
	return r.accounts.update(ctx, id, func(a *models.TikTokAccount) error {
		if err := mutate(a); err != nil {
			return err
		}
		a.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	if err := r.accounts.delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account '%s': %w", id, err)
	}
	return nil
}

func (r *accountRepository) ListByUser(ctx context.Context, userID string) ([]*models.TikTokAccount, error) {
	return r.accounts.find(ctx, newestFirst(database.Where("userId", database.OpEqual, userID)))
}

func (r *accountRepository) List(ctx context.Context) ([]*models.TikTokAccount, error) {
	return r.accounts.find(ctx, newestFirst())
}

func (r *accountRepository) ListRecent(ctx context.Context, limit int) ([]*models.TikTokAccount, error) {
	q := newestFirst()
	q.Limit = limit
	return r.accounts.find(ctx, q)
}

func (r *accountRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.accounts.count(ctx, database.Where("userId", database.OpEqual, userID))
}

func (r *accountRepository) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	return r.accounts.count(ctx,
		database.Where("userId", database.OpEqual, userID),
		database.Where("status", database.OpEqual, string(models.AccountActive)),
	)
}

func (r *accountRepository) Count(ctx context.Context) (int64, error) {
	return r.accounts.count(ctx)
}

func (r *accountRepository) CountByStatus(ctx context.Context, status models.AccountStatus) (int64, error) {
	return r.accounts.count(ctx, database.Where("status", database.OpEqual, string(status)))
}
