package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/auth"
	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
)

// userService implements the UserService interface.
type userService struct {
	userRepo db.UserRepository
	logger   *zap.Logger
	now      clock
}

// NewUserService creates a new UserService.
func NewUserService(userRepo db.UserRepository, logger *zap.Logger) UserService {
	return &userService{userRepo: userRepo, logger: logger, now: systemClock}
}

// ResolveOrProvision performs at most one user write: a create for a new
// identity or a lastLogin stamp for a known one.
func (s *userService) ResolveOrProvision(ctx context.Context, identity *auth.Identity) (*Resolution, error) {
	if identity == nil || identity.UID == "" {
		return nil, &Error{Kind: ErrUnauthorized, Message: "Authentication required"}
	}

	now := s.now()
	user, err := s.userRepo.Update(ctx, identity.UID, func(u *models.User) error {
		if !u.IsActive {
			return ErrInactiveUser
		}
		u.LastLogin = &now
		return nil
	})
	switch {
	case err == nil:
		return &Resolution{User: user}, nil
	case errors.Is(err, ErrInactiveUser):
		return nil, ErrInactiveUser
	case !db.IsNotFound(err):
		return nil, fmt.Errorf("failed to resolve user %s: %w", identity.UID, err)
	}

	newUser := &models.User{
		ID:            identity.UID,
		Email:         strings.ToLower(identity.Email),
		DisplayName:   identity.Name,
		PhotoURL:      identity.Picture,
		EmailVerified: identity.EmailVerified,
		Role:          models.RoleUser,
		IsActive:      true,
		LastLogin:     &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			// A concurrent first request created the user.
			existing, getErr := s.userRepo.GetByID(ctx, identity.UID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrently created user %s: %w", identity.UID, getErr)
			}
			if !existing.IsActive {
				return nil, ErrInactiveUser
			}
			return &Resolution{User: existing}, nil
		}
		return nil, fmt.Errorf("failed to provision user %s: %w", identity.UID, err)
	}
	s.logger.Info("Provisioned new user", zap.String("user_id", newUser.ID), zap.String("email", newUser.Email))
	return &Resolution{User: newUser, Created: true}, nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (s *userService) RequireAdmin(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, &Error{Kind: ErrUnauthorized, Message: "Authentication required"}
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	if !user.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if req.DisplayName == nil && req.PhotoURL == nil {
		return nil, validationError("No profile fields provided")
	}
	user, err := s.userRepo.Update(ctx, userID, func(u *models.User) error {
		if req.DisplayName != nil {
			u.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if req.PhotoURL != nil {
			u.PhotoURL = strings.TrimSpace(*req.PhotoURL)
		}
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to update profile for %s: %w", userID, err)
	}
	return user, nil
}

// Deactivate marks the user inactive. The record is kept for billing history.
func (s *userService) Deactivate(ctx context.Context, userID string) error {
	_, err := s.userRepo.Update(ctx, userID, func(u *models.User) error {
		u.IsActive = false
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return notFoundError("User not found")
		}
		return fmt.Errorf("failed to deactivate user %s: %w", userID, err)
	}
	s.logger.Info("User deactivated", zap.String("user_id", userID))
	return nil
}

func (s *userService) SetRole(ctx context.Context, userID string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, validationError("Invalid role. Must be 'user' or 'admin'")
	}
	user, err := s.userRepo.Update(ctx, userID, func(u *models.User) error {
		u.Role = role
		return nil
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, notFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to set role for %s: %w", userID, err)
	}
	return user, nil
}
