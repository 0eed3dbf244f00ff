package service

import (
	"context"
	"time"

	"inphrone-backend/internal/common/errors"
	"inphrone-backend/internal/common/logger"
	notifmodels "inphrone-backend/internal/features/notification/models"
	"inphrone-backend/internal/features/streak/models"
	"inphrone-backend/internal/features/streak/repository"
	usermodels "inphrone-backend/internal/features/user/models"
)

type ProfileLookup interface {
	Get(ctx context.Context, id int64) (*usermodels.User, error)
}

type EmailEnqueuer interface {
	Enqueue(ctx context.Context, req notifmodels.EmailRequest) error
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	repo     repository.StreakRepository
	profiles ProfileLookup
	mailer   EmailEnqueuer
	loc      *time.Location
	now      func() time.Time
}

// NewService computes calendar days in loc. profiles and mailer may be nil,
// which disables achievement emails.
func NewService(repo repository.StreakRepository, profiles ProfileLookup, mailer EmailEnqueuer, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		repo:     repo,
		profiles: profiles,
		mailer:   mailer,
		loc:      loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

// RecordActivity counts today as an active day for the user
func (s *Service) RecordActivity(ctx context.Context, userID int64) (*models.ActivityResult, error) {
	return s.RecordActivityOn(ctx, userID, s.today())
}

// RecordActivityOn extends or restarts the streak and awards milestone
// badges that were reached for the first time.
func (s *Service) RecordActivityOn(ctx context.Context, userID int64, day string) (*models.ActivityResult, error) {
	if _, err := time.Parse(dateLayout, day); err != nil {
		return nil, errors.NewValidationError("date", "must be YYYY-MM-DD")
	}

	var before models.Streak
	updated, changed, err := s.repo.Update(ctx, userID, func(st *models.Streak) (bool, error) {
		before = *st
		next, changed, err := Advance(*st, day)
		if err != nil {
			return false, err
		}
		*st = next
		return changed, nil
	})
	if err != nil {
		return nil, errors.NewDatabaseError("record activity", err)
	}

	result := &models.ActivityResult{Streak: updated, Changed: changed}
	if !changed {
		return result, nil
	}

	result.NewLongest = updated.LongestStreak > before.LongestStreak && updated.LongestStreak > 1
	if tier := TierFor(updated.CurrentStreak); tier != TierFor(before.CurrentStreak) && updated.CurrentStreak > before.CurrentStreak {
		result.ReachedTier = &tier
	}

	at := s.now()
	for _, m := range crossedMilestones(before.CurrentStreak, updated.CurrentStreak) {
		code := models.MilestoneBadgeCode(m)
		awarded, err := s.repo.AwardBadge(ctx, userID, code, at)
		if err != nil {
			return nil, errors.NewDatabaseError("award badge", err)
		}
		if !awarded {
			continue
		}
		badge := &models.Badge{UserID: userID, Code: code, Name: models.BadgeName(code), AwardedAt: at}
		result.NewBadges = append(result.NewBadges, badge)

		logger.Info().Int64("user_id", userID).Str("badge", code).Int("streak", updated.CurrentStreak).Msg("Badge awarded")
		s.notifyMilestone(ctx, userID, m, badge)
	}

	logger.Debug().
		Int64("user_id", userID).
		Int("current", updated.CurrentStreak).
		Int("longest", updated.LongestStreak).
		Msg("Streak updated")
	return result, nil
}

func (s *Service) GetProgress(ctx context.Context, userID int64) (*models.Progress, error) {
	st, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("get streak", err)
	}
	p := Calculate(*st, s.today())
	return &p, nil
}

func (s *Service) ListBadges(ctx context.Context, userID int64) ([]*models.Badge, error) {
	badges, err := s.repo.ListBadges(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("list badges", err)
	}
	return badges, nil
}

// CountActiveToday counts profiles whose streak is alive today
func (s *Service) CountActiveToday(ctx context.Context) (int64, error) {
	n, err := s.repo.CountActiveSince(ctx, s.today())
	if err != nil {
		return 0, errors.NewDatabaseError("count active", err)
	}
	return n, nil
}

// notifyMilestone is best effort; a failed enqueue never undoes the badge
func (s *Service) notifyMilestone(ctx context.Context, userID int64, days int, badge *models.Badge) {
	if s.mailer == nil || s.profiles == nil {
		return
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil || profile.Email == "" {
		return
	}

	requests := []notifmodels.EmailRequest{
		{
			Type: notifmodels.EmailStreakAchievement,
			To:   profile.Email,
			Name: profile.FirstName,
			Data: map[string]interface{}{"streak_days": days},
		},
		{
			Type: notifmodels.EmailBadgeEarned,
			To:   profile.Email,
			Name: profile.FirstName,
			Data: map[string]interface{}{"badge_code": badge.Code, "badge_name": badge.Name},
		},
	}
	for _, req := range requests {
		if err := s.mailer.Enqueue(ctx, req); err != nil {
			logger.Warn().Err(err).Int64("user_id", userID).Str("type", string(req.Type)).Msg("Failed to enqueue email")
		}
	}
}

// MarkActive records today's activity for callers that only need the side effect
func (s *Service) MarkActive(ctx context.Context, userID int64) error {
	_, err := s.RecordActivity(ctx, userID)
	return err
}
