package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

type userRepository struct {
	users collection[models.User]
}

// NewUserRepository creates a UserRepository over store.
// The identity provider UID is the document ID.
func NewUserRepository(store database.Store) UserRepository {
	return &userRepository{users: collection[models.User]{store: store, name: usersCollection}}
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	user, err := r.users.get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user '%s': %w", userID, err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := r.users.first(ctx, database.Query{
		Filters: []database.Filter{database.Where("email", database.OpEqual, strings.ToLower(email))},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email '%s': %w", email, err)
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Create operation")
	}
	if err := r.users.create(ctx, user.ID, user); err != nil {
		return fmt.Errorf("failed to create user '%s': %w", user.ID, err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, userID string, mutate func(*models.User) error) (*models.User, error) {
	return r.users.update(ctx, userID, func(u *models.User) error {
		if err := mutate(u); err != nil {
			return err
		}
		u.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	return r.users.find(ctx, database.Query{OrderBy: "createdAt", Descending: true})
}

func (r *userRepository) ListRecent(ctx context.Context, limit int) ([]*models.User, error) {
	return r.users.find(ctx, database.Query{OrderBy: "createdAt", Descending: true, Limit: limit})
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	return r.users.count(ctx)
}

func (r *userRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	return r.users.count(ctx, database.Where("createdAt", database.OpGreaterOrEqual, since))
}
