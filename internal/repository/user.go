package repository

import (
	"context"

	"tourbus/internal/domain"
)

// UserRepository defines the persistence operations for user profiles.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetAll(ctx context.Context) ([]*domain.User, error)
}
