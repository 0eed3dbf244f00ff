package repository

import (
	"context"
	"errors"

	"inphrone-backend/internal/features/user/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	CompleteOnboarding(ctx context.Context, id int64, input *models.OnboardingRequest) error
	ListWithEmail(ctx context.Context, limit, offset int) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}
