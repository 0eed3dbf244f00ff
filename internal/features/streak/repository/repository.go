package repository

import (
	"context"
	"time"

	"inphrone-backend/internal/features/streak/models"
)

// StreakRepository persists streak counters and awarded badges
type StreakRepository interface {
	// Get returns a zero streak for users without activity
	Get(ctx context.Context, userID int64) (*models.Streak, error)
	// Update locks the user's row, lets apply mutate it and stores the
	// result when apply reports a change.
	Update(ctx context.Context, userID int64, apply func(*models.Streak) (bool, error)) (*models.Streak, bool, error)
	// AwardBadge returns false when the user already holds the badge
	AwardBadge(ctx context.Context, userID int64, code string, at time.Time) (bool, error)
	ListBadges(ctx context.Context, userID int64) ([]*models.Badge, error)
	CountActiveSince(ctx context.Context, date string) (int64, error)
}
