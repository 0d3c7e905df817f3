package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tourbus/internal/domain"
	"tourbus/internal/redis"
	"tourbus/internal/repository"
)

// UserService manages customer and owner profiles.
type UserService struct {
	users  repository.UserRepository
	cache  redis.ProfileCache
	logger *logrus.Logger
	now    func() time.Time
}

// NewUserService creates a new UserService. cache may be nil.
func NewUserService(users repository.UserRepository, cache redis.ProfileCache, logger *logrus.Logger) *UserService {
	return &UserService{users: users, cache: cache, logger: logger, now: time.Now}
}

// CreateUserRequest contains the parameters for creating a profile.
type CreateUserRequest struct {
	Name  string
	Email string
	Phone string
	Role  domain.Role
}

// CreateUser stores a new profile. Emails are unique.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Msg: "is required"}
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &domain.ValidationError{Field: "email", Msg: "is not a valid address", Err: err}
	}
	role := req.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if role != domain.RoleCustomer && role != domain.RoleOwner {
		return nil, &domain.ValidationError{Field: "role", Msg: "must be customer or owner"}
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, &domain.ValidationError{Field: "email", Msg: "is already registered"}
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, storeError("get user", "user", email, err)
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError("create user", "user", user.ID, err)
	}
	return user, nil
}

// GetUser retrieves a profile by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "id", Msg: "is required"}
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get user", "user", id, err)
	}
	return user, nil
}

// ListUsers returns every profile.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, storeError("list users", "user", "", err)
	}
	return users, nil
}

// Profile returns the contact snapshot for userID, reading through the cache.
// A missing profile returns a NotFoundError.
func (s *UserService) Profile(ctx context.Context, userID string) (*redis.CachedProfile, error) {
	if s.cache != nil {
		cached, err := s.cache.GetProfile(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("profile cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &redis.CachedProfile{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
		Role:  string(user.Role),
	}
	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, profile); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("profile cache write failed")
		}
	}
	return profile, nil
}
