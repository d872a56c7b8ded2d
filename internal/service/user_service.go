package service

import (
	"context"
	"errors"
	"strings"

	"carrental/internal/database"
	"carrental/internal/domain"
	"carrental/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// ChangeRole sets the role of userID. Admins cannot change their own role.
func (s *UserService) ChangeRole(ctx context.Context, actor models.Actor, userID, role string) (*models.User, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !models.ValidRole(role) {
		return nil, invalid("role", "Invalid role.")
	}
	if userID == actor.UserID {
		return nil, ErrSelfModification
	}

	if err := s.repo.UpdateUserRole(ctx, userID, role); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("role", role).Str("by", actor.UserID).Msg("user role changed")
	return s.GetUserByID(ctx, userID)
}

// DeleteUser removes the account; the linked customer and its bookings stay.
func (s *UserService) DeleteUser(ctx context.Context, actor models.Actor, userID string) error {
	if userID == actor.UserID {
		return ErrSelfModification
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("by", actor.UserID).Msg("user deleted")
	return nil
}
