package service

import (
	"context"
	stderrors "errors"
	"time"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	notifmodels "inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/user/models"
	"inphrone-backend/internal/features/user/repository"
)

type UserService interface {
	GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	CompleteOnboarding(ctx context.Context, id int64, input *models.OnboardingRequest) (*models.User, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*models.User, error)
}

// ProfileCache is optional; a nil cache disables caching
type ProfileCache interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	Set(ctx context.Context, u *models.User) error
	Invalidate(ctx context.Context, id int64) error
}

type EmailEnqueuer interface {
	Enqueue(ctx context.Context, req notifmodels.EmailRequest) error
}

type userService struct {
	repo   repository.UserRepository
	cache  ProfileCache
	mailer EmailEnqueuer
	now    func() time.Time
}

func NewUserService(repo repository.UserRepository, cache ProfileCache, mailer EmailEnqueuer) UserService {
	return &userService{
		repo:   repo,
		cache:  cache,
		mailer: mailer,
		now:    time.Now,
	}
}

func (s *userService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id, "get user")
	}
	return user, nil
}

// GetOrCreate refreshes the identity fields of an existing profile or
// provisions a new audience profile.
func (s *userService) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error) {
	if cached := s.cached(ctx, telegramID); cached != nil && sameIdentity(cached, username, firstName, lastName) {
		return cached, nil
	}

	user, err := s.repo.GetByID(ctx, telegramID)
	switch {
	case err == nil:
		if !sameIdentity(user, username, firstName, lastName) {
			user.Username = username
			user.FirstName = firstName
			user.LastName = lastName
			if err := s.repo.Update(ctx, user); err != nil {
				return nil, mapRepoError(err, telegramID, "update user")
			}
		}
	case stderrors.Is(err, repository.ErrUserNotFound):
		now := s.now()
		user = &models.User{
			ID:        telegramID,
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
			Role:      models.RoleAudience,
			Status:    models.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, errors.NewDatabaseError("create user", err)
		}
		logger.Info().Int64("user_id", telegramID).Msg("Profile created")
	default:
		return nil, errors.NewDatabaseError("get user", err)
	}

	s.store(ctx, user)
	return user, nil
}

func (s *userService) CompleteOnboarding(ctx context.Context, id int64, input *models.OnboardingRequest) (*models.User, error) {
	if err := s.repo.CompleteOnboarding(ctx, id, input); err != nil {
		return nil, mapRepoError(err, id, "complete onboarding")
	}
	s.invalidate(ctx, id)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id, "get user")
	}

	if user.Email != "" && s.mailer != nil {
		req := notifmodels.EmailRequest{
			Type: notifmodels.EmailWelcome,
			To:   user.Email,
			Name: user.FirstName,
			Data: map[string]interface{}{"role": string(user.Role)},
		}
		if err := s.mailer.Enqueue(ctx, req); err != nil {
			logger.Warn().Err(err).Int64("user_id", id).Msg("Failed to enqueue welcome email")
		}
	}
	return user, nil
}

func (s *userService) UpdateStatus(ctx context.Context, id int64, status string) (*models.User, error) {
	if status != models.StatusActive && status != models.StatusBanned {
		return nil, errors.NewValidationError("status", "must be active or banned")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, mapRepoError(err, id, "update user status")
	}
	s.invalidate(ctx, id)

	logger.Info().Int64("user_id", id).Str("status", status).Msg("Profile status changed")
	return s.Get(ctx, id)
}

func (s *userService) cached(ctx context.Context, id int64) *models.User {
	if s.cache == nil {
		return nil
	}
	u, err := s.cache.Get(ctx, id)
	if err != nil {
		logger.Debug().Err(err).Int64("user_id", id).Msg("Profile cache read failed")
		return nil
	}
	return u
}

func (s *userService) store(ctx context.Context, u *models.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, u); err != nil {
		logger.Debug().Err(err).Int64("user_id", u.ID).Msg("Profile cache write failed")
	}
}

func (s *userService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.Warn().Err(err).Int64("user_id", id).Msg("Profile cache invalidation failed")
	}
}

func sameIdentity(u *models.User, username, firstName, lastName string) bool {
	return u.Username == username && u.FirstName == firstName && u.LastName == lastName
}

func mapRepoError(err error, id int64, op string) error {
	if stderrors.Is(err, repository.ErrUserNotFound) {
		return errors.NewUserNotFoundError(id)
	}
	return errors.NewDatabaseError(op, err)
}
